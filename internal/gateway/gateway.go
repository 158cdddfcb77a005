// Package gateway invokes the external notes backend and parses its single-object JSON answers.
//
// Every invocation runs `<interpreter> <script> <command> <args...>` with arguments passed as
// discrete argv entries, so no argument is ever interpreted by a shell. Merged stdout and stderr
// must be exactly one JSON object; anything else is reported as ErrExecFailed or ErrInvalidResponse
// and the raw output is written only to the command log.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/and161185/noteskeeper/internal/errs"
)

// Invoker runs one backend command.
type Invoker interface {
	Invoke(ctx context.Context, command string, args ...string) (*Result, error)
}

// Config controls process invocation.
type Config struct {
	Interpreter string
	Script      string
	WorkDir     string
	Env         []string
	Timeout     time.Duration
	MaxOutput   int64
}

// Gateway is the os/exec based Invoker.
type Gateway struct {
	cfg      Config
	commands map[string]Command
	log      *zap.Logger
	cmdLog   *zap.Logger
}

// New constructs a Gateway over the default command table.
// log receives operational messages; cmdLog receives one entry per invocation.
func New(cfg Config, log, cmdLog *zap.Logger) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = 4 << 20
	}
	if cmdLog == nil {
		cmdLog = zap.NewNop()
	}
	return &Gateway{cfg: cfg, commands: DefaultCommands(), log: log, cmdLog: cmdLog}
}

// Invoke runs command with args and returns the parsed object.
// A backend `{"error": ...}` answer is returned as a Result; callers inspect Result.Err.
func (g *Gateway) Invoke(ctx context.Context, command string, args ...string) (*Result, error) {
	c, ok := g.commands[command]
	if !ok {
		g.log.Error("unknown backend command", zap.String("command", command))
		return nil, fmt.Errorf("%w: %w %q", errs.ErrExecFailed, errs.ErrUnknownCommand, command)
	}
	if len(args) != len(c.Params) {
		g.log.Error("backend command arity mismatch",
			zap.String("command", command),
			zap.Int("want", len(c.Params)),
			zap.Int("got", len(args)),
		)
		return nil, fmt.Errorf("%w: %w: %s wants %d, got %d", errs.ErrExecFailed, errs.ErrArity, command, len(c.Params), len(args))
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	argv := append([]string{g.cfg.Script, command}, args...)
	cmd := exec.CommandContext(ctx, g.cfg.Interpreter, argv...)
	cmd.Dir = g.cfg.WorkDir
	cmd.Env = append(os.Environ(), g.cfg.Env...)
	cmd.WaitDelay = time.Second

	out := &cappedBuffer{max: g.cfg.MaxOutput}
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	runErr := cmd.Run()
	dur := time.Since(start)

	res, err := parse(out.Bytes())
	switch {
	case ctx.Err() != nil:
		err = fmt.Errorf("%w: %w", errs.ErrExecFailed, ctx.Err())
	case out.truncated:
		err = fmt.Errorf("%w: output exceeds %d bytes", errs.ErrInvalidResponse, g.cfg.MaxOutput)
	case err != nil && len(bytes.TrimSpace(out.Bytes())) == 0 && runErr != nil:
		err = fmt.Errorf("%w: %w", errs.ErrExecFailed, runErr)
	}

	g.record(c, args, out, dur, runErr, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Check verifies that the interpreter and script are reachable.
func (g *Gateway) Check() error {
	if _, err := exec.LookPath(g.cfg.Interpreter); err != nil {
		return fmt.Errorf("interpreter: %w", err)
	}
	script := g.cfg.Script
	if !filepath.IsAbs(script) && g.cfg.WorkDir != "" {
		script = filepath.Join(g.cfg.WorkDir, script)
	}
	st, err := os.Stat(script)
	if err != nil {
		return fmt.Errorf("script: %w", err)
	}
	if st.IsDir() {
		return fmt.Errorf("script: %s is a directory", script)
	}
	return nil
}

func (g *Gateway) record(c Command, args []string, out *cappedBuffer, dur time.Duration, runErr, err error) {
	line := shellquote.Join(append([]string{g.cfg.Interpreter, g.cfg.Script, c.Name}, c.redact(args)...)...)
	fields := []zap.Field{
		zap.String("command", c.Name),
		zap.String("invocation", line),
		zap.Duration("dur", dur),
		zap.Int("bytes", out.Len()),
	}
	if !c.QuietOutput {
		fields = append(fields, zap.ByteString("output", out.Bytes()))
	}
	if runErr != nil {
		fields = append(fields, zap.NamedError("exit", runErr))
	}
	if err != nil {
		g.cmdLog.Warn("invoke", append(fields, zap.Error(err))...)
		return
	}
	g.cmdLog.Info("invoke", fields...)
}

// parse accepts exactly one non-empty JSON object surrounded by optional whitespace.
func parse(out []byte) (*Result, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, errs.ErrExecFailed
	}
	if trimmed[0] != '{' {
		return nil, errs.ErrInvalidResponse
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidResponse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", errs.ErrInvalidResponse)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty object", errs.ErrInvalidResponse)
	}
	return &Result{raw: trimmed, fields: fields}, nil
}

// cappedBuffer keeps at most max bytes and silently discards the rest.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - int64(b.buf.Len())
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if int64(len(p)) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte { return b.buf.Bytes() }
func (b *cappedBuffer) Len() int      { return b.buf.Len() }
