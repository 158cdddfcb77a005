package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/noteskeeper/internal/errs"
)

const helperEnv = "NK_WANT_HELPER_PROCESS"

// TestHelperProcess stands in for the backend script when re-executed by helperGateway.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	args := os.Args[2:]
	command, rest := args[0], args[1:]
	out := os.Stdout

	switch command {
	case "echo", "echo3", CmdCreateNote:
		b, _ := json.Marshal(map[string]any{"args": rest})
		fmt.Fprint(out, string(b))
	case CmdGetNotes:
		fmt.Fprint(out, `{"notes":[{"id":1,"title":"a","preview":"p","created_at":1700000000.5}]}`)
	case CmdLogin:
		fmt.Fprint(out, `{"message":"Login successful","user_id":7,"token":"tok-secret"}`)
	case "empty":
	case "blank":
		fmt.Fprint(out, "  \n\t")
	case "garbage":
		fmt.Fprint(out, "Traceback (most recent call last):\n  boom")
	case "array":
		fmt.Fprint(out, `[1,2,3]`)
	case "emptyobj":
		fmt.Fprint(out, `{}`)
	case "twoobj":
		fmt.Fprint(out, `{"a":1}{"b":2}`)
	case "domain":
		fmt.Fprint(out, `{"error":"Invalid credentials"}`)
	case "stderr":
		fmt.Fprint(os.Stderr, `{"message":"from stderr"}`)
	case "exit3":
		fmt.Fprint(out, `{"message":"partial"}`)
		os.Exit(3)
	case "huge":
		fmt.Fprintf(out, `{"message":%q}`, strings.Repeat("x", 4096))
	case "sleep":
		time.Sleep(10 * time.Second)
	default:
		fmt.Fprintf(os.Stderr, "unknown helper command %q", command)
	}
	os.Exit(0)
}

func testCommands() map[string]Command {
	m := DefaultCommands()
	one := []string{"empty", "blank", "garbage", "array", "emptyobj", "twoobj", "domain", "stderr", "exit3", "huge", "sleep"}
	for _, n := range one {
		m[n] = Command{Name: n}
	}
	m["echo"] = cmd("echo", p("value"))
	m["echo3"] = cmd("echo3", p("a"), secret("b"), p("c"))
	return m
}

func helperGateway(t *testing.T, cmdLog *zap.Logger) *Gateway {
	t.Helper()
	g := New(Config{
		Interpreter: os.Args[0],
		Script:      "-test.run=TestHelperProcess",
		Env:         []string{helperEnv + "=1"},
		Timeout:     5 * time.Second,
	}, zaptest.NewLogger(t), cmdLog)
	g.commands = testCommands()
	return g
}

func TestInvoke_ShellMetacharactersArriveAsOneLiteral(t *testing.T) {
	t.Parallel()

	g := helperGateway(t, nil)
	hostile := []string{
		`"; rm -rf /`,
		`'; rm -rf / #`,
		"$(whoami)",
		"`id`",
		"a b  c",
		"x && y || z",
		"*",
		"line1\nline2",
		`back\slash`,
		"",
		"-test.v",
		"заметка",
	}
	for _, h := range hostile {
		res, err := g.Invoke(context.Background(), "echo", h)
		require.NoError(t, err, "arg %q", h)
		var got struct{ Args []string }
		require.NoError(t, res.Decode(&got))
		require.Equal(t, []string{h}, got.Args, "arg %q", h)
	}
}

func TestInvoke_ParsesObjectAndDomainError(t *testing.T) {
	t.Parallel()

	g := helperGateway(t, nil)
	ctx := context.Background()

	res, err := g.Invoke(ctx, CmdLogin, "alice", "pw")
	require.NoError(t, err)
	require.NoError(t, res.Err())
	require.Equal(t, "Login successful", res.Message())
	require.Equal(t, "7", res.String("user_id"))
	require.Equal(t, "tok-secret", res.String("token"))

	res, err = g.Invoke(ctx, "domain")
	require.NoError(t, err)
	var de *errs.DomainError
	require.ErrorAs(t, res.Err(), &de)
	require.Equal(t, "Invalid credentials", de.Msg)

	res, err = g.Invoke(ctx, "stderr")
	require.NoError(t, err, "stderr is merged into the output")
	require.Equal(t, "from stderr", res.Message())

	res, err = g.Invoke(ctx, "exit3")
	require.NoError(t, err, "exit status does not override a valid object")
	require.Equal(t, "partial", res.Message())
}

func TestInvoke_FailureClassification(t *testing.T) {
	t.Parallel()

	g := helperGateway(t, nil)
	ctx := context.Background()

	cases := map[string]error{
		"empty":    errs.ErrExecFailed,
		"blank":    errs.ErrExecFailed,
		"garbage":  errs.ErrInvalidResponse,
		"array":    errs.ErrInvalidResponse,
		"emptyobj": errs.ErrInvalidResponse,
		"twoobj":   errs.ErrInvalidResponse,
	}
	for command, want := range cases {
		res, err := g.Invoke(ctx, command)
		require.ErrorIs(t, err, want, command)
		require.Nil(t, res, command)
		require.NotContains(t, err.Error(), "Traceback", "raw output must not leak into errors")
	}
}

func TestInvoke_OutputCap(t *testing.T) {
	t.Parallel()

	g := helperGateway(t, nil)
	g.cfg.MaxOutput = 64
	_, err := g.Invoke(context.Background(), "huge")
	require.ErrorIs(t, err, errs.ErrInvalidResponse)
}

func TestInvoke_Timeout(t *testing.T) {
	t.Parallel()

	g := helperGateway(t, nil)
	g.cfg.Timeout = 200 * time.Millisecond
	start := time.Now()
	_, err := g.Invoke(context.Background(), "sleep")
	require.ErrorIs(t, err, errs.ErrExecFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestInvoke_ArityAndUnknownCommandNeverExec(t *testing.T) {
	t.Parallel()

	g := New(Config{Interpreter: "/nonexistent/interpreter", Script: "x"}, zaptest.NewLogger(t), nil)

	_, err := g.Invoke(context.Background(), CmdCreateNote, "1", "title")
	require.ErrorIs(t, err, errs.ErrArity)
	require.ErrorIs(t, err, errs.ErrExecFailed)

	_, err = g.Invoke(context.Background(), "drop_database")
	require.ErrorIs(t, err, errs.ErrUnknownCommand)
	require.ErrorIs(t, err, errs.ErrExecFailed)
}

func TestInvoke_MissingInterpreter(t *testing.T) {
	t.Parallel()

	g := New(Config{Interpreter: "/nonexistent/interpreter", Script: "x"}, zaptest.NewLogger(t), nil)
	_, err := g.Invoke(context.Background(), CmdGetUsername, "1")
	require.ErrorIs(t, err, errs.ErrExecFailed)
}

func TestInvoke_GetNotesIdempotent(t *testing.T) {
	t.Parallel()

	g := helperGateway(t, nil)
	ctx := context.Background()
	a, err := g.Invoke(ctx, CmdGetNotes, "1", "created_at")
	require.NoError(t, err)
	b, err := g.Invoke(ctx, CmdGetNotes, "1", "created_at")
	require.NoError(t, err)
	require.JSONEq(t, string(a.Raw()), string(b.Raw()))
}

func TestCommandLog_RedactsAndQuotes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "commands.log")
	cmdLog, closeLog, err := NewCommandLog(path)
	require.NoError(t, err)

	g := helperGateway(t, cmdLog)
	ctx := context.Background()
	_, err = g.Invoke(ctx, CmdLogin, "alice", "hunter2")
	require.NoError(t, err)
	_, err = g.Invoke(ctx, "echo3", `"; rm -rf /`, "s3cret", "plain")
	require.NoError(t, err)
	_, err = g.Invoke(ctx, "garbage")
	require.Error(t, err)
	require.NoError(t, closeLog())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e), sc.Text())
		entries = append(entries, e)
	}
	require.Len(t, entries, 3)

	all := fmt.Sprint(entries)
	require.NotContains(t, all, "hunter2")
	require.NotContains(t, all, "tok-secret", "login output is not logged")
	require.NotContains(t, all, "s3cret")

	for _, e := range entries {
		ts, _ := e["ts"].(string)
		_, perr := time.Parse("2006-01-02T15:04:05.000Z0700", ts)
		require.NoError(t, perr, "ts=%q", ts)
	}

	argv, err := shellquote.Split(entries[1]["invocation"].(string))
	require.NoError(t, err)
	require.Equal(t, []string{os.Args[0], "-test.run=TestHelperProcess", "echo3", `"; rm -rf /`, "***", "plain"}, argv)

	require.Contains(t, entries[2]["output"], "Traceback", "raw output goes to the private log")
	require.Equal(t, "warn", entries[2]["level"])
}

func TestCommandLog_AppendOnly(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "commands.log")
	for i := 0; i < 2; i++ {
		l, closeLog, err := NewCommandLog(path)
		require.NoError(t, err)
		l.Info("invoke", zap.Int("n", i))
		require.NoError(t, closeLog())
	}
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(b), "\n"))
}

func TestCheck(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(script, []byte("print('{}')"), 0o600))
	log := zaptest.NewLogger(t)

	require.NoError(t, New(Config{Interpreter: os.Args[0], Script: script}, log, nil).Check())
	require.NoError(t, New(Config{Interpreter: os.Args[0], Script: "main.py", WorkDir: dir}, log, nil).Check())
	require.Error(t, New(Config{Interpreter: os.Args[0], Script: filepath.Join(dir, "nope.py")}, log, nil).Check())
	require.Error(t, New(Config{Interpreter: os.Args[0], Script: dir}, log, nil).Check())
	require.Error(t, New(Config{Interpreter: "/nonexistent/python", Script: script}, log, nil).Check())
}

func TestParse(t *testing.T) {
	t.Parallel()

	res, err := parse([]byte("  {\"message\":\"ok\",\"note_id\":5}\n"))
	require.NoError(t, err)
	require.Equal(t, "ok", res.Message())
	require.Equal(t, "5", res.String("note_id"))
	require.Equal(t, "", res.String("missing"))

	for _, bad := range []string{"null", "\"str\"", "42", "{", "{} trailing", `{"a":1} {"b":2}`} {
		_, err := parse([]byte(bad))
		require.True(t, errors.Is(err, errs.ErrInvalidResponse), "input %q: %v", bad, err)
	}
	_, err = parse(nil)
	require.ErrorIs(t, err, errs.ErrExecFailed)
}

func TestDefaultCommands_SecretsDeclared(t *testing.T) {
	t.Parallel()

	table := DefaultCommands()
	require.Len(t, table, 24)
	for _, name := range []string{CmdRegister, CmdLogin, CmdChangePassword, CmdResetPassword} {
		c := table[name]
		var secrets int
		for _, p := range c.Params {
			if p.Secret {
				secrets++
			}
		}
		require.Positive(t, secrets, name)
	}
	require.Equal(t, []string{"u", "***"}, table[CmdLogin].redact([]string{"u", "pw"}))
}
