package runner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bluegreen/pkg/consts"
	"github.com/pseudomuto/bluegreen/pkg/deploy"
)

// DefaultTailLines is the number of stderr lines kept for BuildFailed.
const DefaultTailLines = 20

// Subprocess runs the Transformation Runner as a child process. Output is
// streamed to Stdout and Stderr while the last TailLines lines of stderr are
// kept for error reporting.
//
// Example usage:
//
//	r := runner.New("dbt")
//	err := r.Run(ctx, deploy.Invocation{
//		Dir:  "analytics",
//		Args: []string{"build", "--fail-fast"},
//		Env:  map[string]string{"PROD_DATABASE": "PROD_STAGING"},
//	})
type Subprocess struct {
	Executable string
	Stdout     io.Writer
	Stderr     io.Writer
	TailLines  int
}

// New creates a Subprocess for executable writing to the process's own
// stdout and stderr.
func New(executable string) *Subprocess {
	if executable == "" {
		executable = consts.DefaultExecutable
	}

	return &Subprocess{
		Executable: executable,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		TailLines:  DefaultTailLines,
	}
}

// Run starts the process and waits for it to exit. The inherited environment
// is passed through with inv.Env applied on top. A non-zero exit is returned
// as a *deploy.BuildFailed.
func (s *Subprocess) Run(ctx context.Context, inv deploy.Invocation) error {
	cmd := exec.CommandContext(ctx, s.Executable, inv.Args...) //nolint:gosec // executable comes from project configuration
	cmd.Dir = inv.Dir
	cmd.Env = Environ(os.Environ(), inv.Env)

	tail := newTailWriter(s.TailLines)
	cmd.Stdout = writerOrDiscard(s.Stdout)
	cmd.Stderr = io.MultiWriter(writerOrDiscard(s.Stderr), tail)

	slog.Debug("Starting transformation runner", "executable", s.Executable, "dir", inv.Dir, "args", inv.Args)

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &deploy.BuildFailed{
			ExitCode:   exitErr.ExitCode(),
			StderrTail: tail.String(),
			Err:        err,
		}
	}

	return errors.Wrapf(err, "failed to run %s", s.Executable)
}

// Environ returns base with overrides applied. Overridden variables are
// removed from base and appended in key order.
func Environ(base []string, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}

	return env
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// tailWriter keeps the last n complete lines written to it, plus any
// unterminated final line.
type tailWriter struct {
	mu      sync.Mutex
	n       int
	lines   []string
	partial strings.Builder
}

func newTailWriter(n int) *tailWriter {
	if n < 1 {
		n = DefaultTailLines
	}
	return &tailWriter{n: n}
}

func (t *tailWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rest := string(p)
	for {
		line, after, found := strings.Cut(rest, "\n")
		if !found {
			t.partial.WriteString(line)
			break
		}

		t.partial.WriteString(line)
		t.lines = append(t.lines, t.partial.String())
		t.partial.Reset()
		if len(t.lines) > t.n {
			t.lines = t.lines[len(t.lines)-t.n:]
		}
		rest = after
	}

	return len(p), nil
}

func (t *tailWriter) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := t.lines
	if t.partial.Len() > 0 {
		lines = append(append([]string(nil), lines...), t.partial.String())
		if len(lines) > t.n {
			lines = lines[len(lines)-t.n:]
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
