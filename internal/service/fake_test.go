package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/and161185/noteskeeper/internal/gateway"
)

type invocation struct {
	command string
	args    []string
}

// fakeInvoker answers per command with canned JSON and records every call.
type fakeInvoker struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	calls   []invocation
}

var _ gateway.Invoker = (*fakeInvoker)(nil)

func newFake(answers map[string]string) *fakeInvoker {
	return &fakeInvoker{answers: answers, errs: map[string]error{}}
}

func (f *fakeInvoker) Invoke(_ context.Context, command string, args ...string) (*gateway.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, invocation{command: command, args: append([]string(nil), args...)})
	f.mu.Unlock()

	if err := f.errs[command]; err != nil {
		return nil, err
	}
	raw, ok := f.answers[command]
	if !ok {
		return nil, fmt.Errorf("fake: unexpected command %s(%s)", command, strings.Join(args, ","))
	}
	return gateway.ParseResult([]byte(raw))
}

func (f *fakeInvoker) count(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.command == command {
			n++
		}
	}
	return n
}

func (f *fakeInvoker) last() invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return invocation{}
	}
	return f.calls[len(f.calls)-1]
}
