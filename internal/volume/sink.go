// Package volume manages the lifecycle of a single output volume: where it
// writes to, the optional external compressor in front of it, and the
// atomic commit (or cleanup, on failure) of the underlying file.
package volume

import (
	"context"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/google/renameio"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/monoid/splitar"
)

// Compressor describes the external command used to compress a volume, e.g.
// {Cmd: "gzip"} or {Cmd: "xz", Args: []string{"-9"}}. A zero value means no
// compression: the volume is written as-is.
type Compressor struct {
	Cmd  string
	Args []string
}

func (c Compressor) enabled() bool {
	return c.Cmd != ""
}

// Sink is an open output volume. Callers Write the volume's bytes to it and
// must call Close to commit it; an unclosed Sink (or one whose Close returns
// an error) leaves nothing behind at its final path.
type Sink struct {
	ctx  context.Context
	path string

	pending  *renameio.PendingFile
	cleanup  int
	registry *splitar.CleanupRegistry

	dst io.Writer

	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// Open creates the volume for path (a renameio temp file, renamed onto path
// when the volume is committed), and,
// if comp is enabled, starts the compressor with its stdout wired to that
// file and returns a Sink whose Write feeds the compressor's stdin instead.
// ctx governs the compressor child's lifetime: if it is canceled while Close
// is waiting on the child, the child is killed rather than left to hang.
func Open(ctx context.Context, registry *splitar.CleanupRegistry, path string, comp Compressor) (*Sink, error) {
	pending, err := renameio.TempFile("", path)
	if err != nil {
		return nil, xerrors.Errorf("creating volume %s: %w", path, err)
	}

	s := &Sink{
		ctx:      ctx,
		path:     path,
		pending:  pending,
		registry: registry,
		dst:      pending,
	}
	s.cleanup = registry.Register(func() { pending.Cleanup() })

	if !comp.enabled() {
		return s, nil
	}

	cmd := exec.Command(comp.Cmd, comp.Args...)
	cmd.Stdout = pending
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.Abort()
		return nil, xerrors.Errorf("piping compressor stdin for %s: %w", path, err)
	}
	if err := cmd.Start(); err != nil {
		s.Abort()
		return nil, xerrors.Errorf("starting compressor %q for %s: %w", comp.Cmd, path, err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.dst = stdin
	return s, nil
}

// Abort discards the volume without committing it: the temp file backing it
// is unlinked and its pending cleanup entry is forgotten. It does not wait
// on a compressor child; callers that spawned one are expected to have
// already torn it down (or to not care, because the process is exiting).
func (s *Sink) Abort() {
	s.registry.Cancel(s.cleanup)
	s.pending.Cleanup()
}

// Write writes p to the volume, or to the compressor feeding it.
func (s *Sink) Write(p []byte) (int, error) {
	return s.dst.Write(p)
}

// Close finishes the compressor (if any) and atomically commits the volume
// to its final path. On any failure the volume's temp file is removed and
// nothing appears at path.
func (s *Sink) Close() error {
	if s.cmd != nil {
		if err := s.closeCompressor(); err != nil {
			s.Abort()
			return err
		}
	}
	if err := s.pending.CloseAtomicallyReplace(); err != nil {
		s.Abort()
		return xerrors.Errorf("committing volume %s: %w", s.path, err)
	}
	s.registry.Cancel(s.cleanup)
	return nil
}

// closeCompressor closes the child's stdin and waits for it to exit,
// running the wait alongside a watcher on s.ctx so that a canceled context
// (SIGINT/SIGTERM reaching the engine) kills a wedged compressor instead of
// blocking Close forever.
func (s *Sink) closeCompressor() error {
	if err := s.stdin.Close(); err != nil {
		return xerrors.Errorf("closing compressor stdin for %s: %w", s.path, err)
	}

	waited := make(chan struct{})
	var eg errgroup.Group
	eg.Go(func() error {
		defer close(waited)
		return s.cmd.Wait()
	})
	eg.Go(func() error {
		select {
		case <-s.ctx.Done():
			s.cmd.Process.Kill()
		case <-waited:
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return classifyCompressorError(s.path, err)
	}
	return nil
}

func classifyCompressorError(path string, err error) error {
	ee, ok := err.(*exec.ExitError)
	if !ok {
		return xerrors.Errorf("waiting for compressor for %s: %w", path, err)
	}
	if ws, ok := ee.Sys().(syscall.WaitStatus); ok && unix.WaitStatus(ws).Signaled() {
		return xerrors.Errorf("%w: %s: killed by signal %v", ErrCompressorFailed, path, ws.Signal())
	}
	return xerrors.Errorf("%w: %s: exit status %d", ErrCompressorFailed, path, ee.ExitCode())
}
