// Package split implements the Splitter Engine: the coordinator that pulls
// records from a tarstream.Reader, consults a tarstream.DirStack, decides
// when to rotate to a new volume.Sink, and writes headers and payload bytes
// through it.
package split

import (
	"context"
	"io"

	"golang.org/x/xerrors"

	"github.com/monoid/splitar"
	"github.com/monoid/splitar/internal/tarstream"
	"github.com/monoid/splitar/internal/volume"
)

// Engine runs the split of a single input stream according to Config.
type Engine struct {
	cfg      Config
	reader   *tarstream.Reader
	dirs     *tarstream.DirStack
	registry *splitar.CleanupRegistry
	listing  io.Writer

	volumeIndex int
	sink        *volume.Sink
	bytesInVol  int64
	producedAny bool // at least one real Record has been written, ever
}

// NewEngine returns an Engine reading from r and writing volumes per cfg.
// listing receives verbose diagnostic lines when cfg.Verbose is set; it may
// be nil otherwise.
func NewEngine(cfg Config, r io.Reader, listing io.Writer) *Engine {
	return &Engine{
		cfg:      cfg,
		reader:   tarstream.NewReader(r),
		dirs:     tarstream.NewDirStack(),
		registry: splitar.NewCleanupRegistry(),
		listing:  listing,
	}
}

// Run drives the split to completion, closing the final volume before
// returning. If reading the input fails, the volume open at that point is
// closed and committed before the error is returned. On any other error the
// volume in progress is discarded without being committed (its temporary
// file is removed); unless the error came from closing that volume, a
// compressor child feeding it is not waited on. Volumes already committed
// remain on disk.
func (e *Engine) Run(ctx context.Context) error {
	defer e.registry.RunPending()

	for {
		rec, err := e.reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			e.closeSink()
			return xerrors.Errorf("reading input: %w", err)
		}
		if err := e.process(ctx, rec); err != nil {
			return err
		}
	}

	// An input that is nothing but archive padding (no real member was ever
	// parsed) has no header/payload split to speak of; pass its terminating
	// zero block(s) through raw rather than producing no output at all.
	if !e.producedAny {
		if trailer := e.reader.Trailer(); len(trailer) > 0 {
			if e.sink == nil {
				if err := e.openVolume(ctx, 0); err != nil {
					return err
				}
			}
			if _, err := e.sink.Write(trailer); err != nil {
				return xerrors.Errorf("writing archive trailer: %w", err)
			}
		}
	}
	return e.closeSink()
}

func (e *Engine) closeSink() error {
	if e.sink == nil {
		return nil
	}
	s := e.sink
	e.sink = nil
	return s.Close()
}

// abortSink discards whatever is currently open without committing it. Used
// when a FileTooLarge failure means the volume in progress never saw the
// member it was about to receive; only volumes already closed survive.
func (e *Engine) abortSink() {
	if e.sink == nil {
		return
	}
	s := e.sink
	e.sink = nil
	s.Abort()
}

// pendingReplaySize reports, without mutating the Directory Context Stack,
// how many bytes replaying rec's not-yet-present ancestors would cost in the
// current volume. It is always 0 on the first volume.
func (e *Engine) pendingReplaySize(rec *tarstream.Record) int64 {
	if !e.cfg.RecreateDirs || e.volumeIndex == 0 {
		return 0
	}
	return int64(len(e.dirs.PendingAncestors(rec.Name))) * splitar.BlockSize
}

// replayPending writes and marks present any of rec's ancestor directories
// that the current volume doesn't have yet. A no-op on the first volume.
func (e *Engine) replayPending(rec *tarstream.Record) error {
	if !e.cfg.RecreateDirs || e.volumeIndex == 0 {
		return nil
	}
	for _, anc := range e.dirs.ReplayAncestors(rec.Name) {
		if err := e.writeHeader(anc); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) openVolume(ctx context.Context, index int) error {
	path := volume.Name(e.cfg.OutputPrefix, index, e.cfg.SuffixLength)
	sink, err := volume.Open(ctx, e.registry, path, e.cfg.Compress)
	if err != nil {
		return xerrors.Errorf("opening volume %d: %w", index, err)
	}
	e.sink = sink
	e.volumeIndex = index
	e.bytesInVol = 0
	return nil
}

func (e *Engine) rotate(ctx context.Context) error {
	if err := e.closeSink(); err != nil {
		return xerrors.Errorf("closing volume %d: %w", e.volumeIndex, err)
	}
	e.dirs.BeginVolume()
	return e.openVolume(ctx, e.volumeIndex+1)
}

func (e *Engine) writeHeader(rec *tarstream.Record) error {
	if _, err := e.sink.Write(rec.RawHeader[:]); err != nil {
		return xerrors.Errorf("writing header for %q: %w", rec.Name, err)
	}
	e.bytesInVol += splitar.BlockSize
	return nil
}

func (e *Engine) process(ctx context.Context, rec *tarstream.Record) error {
	rSize := rec.TotalBlocks * splitar.BlockSize

	// A member that wouldn't fit on a completely fresh volume is oversized
	// regardless of how much room is left in whatever volume happens to be
	// open right now; checked up front, before any rotation, so that in
	// strict mode the volumes already closed are the only ones left on disk
	// (the one in progress, however legitimate its contents so far, is
	// abandoned along with the member that didn't fit).
	if e.sink != nil && rSize+e.pendingReplaySize(rec) > e.cfg.MaxSize {
		if e.cfg.FailOnLargeFile {
			e.abortSink()
			return xerrors.Errorf("%w: %q is %d bytes", ErrFileTooLarge, rec.Name, rSize)
		}
		if e.bytesInVol > 0 {
			if err := e.rotate(ctx); err != nil {
				return err
			}
		}
	}

	switch {
	case e.sink == nil:
		if err := e.openVolume(ctx, 0); err != nil {
			return err
		}
		if rSize > e.cfg.MaxSize && e.cfg.FailOnLargeFile {
			e.abortSink()
			return xerrors.Errorf("%w: %q is %d bytes", ErrFileTooLarge, rec.Name, rSize)
		}
	case e.bytesInVol > 0:
		needed := rSize + e.pendingReplaySize(rec)
		if e.bytesInVol+needed > e.cfg.MaxSize {
			if err := e.rotate(ctx); err != nil {
				return err
			}
		}
	}

	if err := e.replayPending(rec); err != nil {
		return err
	}

	if err := e.writeHeader(rec); err != nil {
		return err
	}
	if rec.PayloadBlocks > 0 {
		if err := e.reader.CopyPayload(e.sink); err != nil {
			return xerrors.Errorf("copying payload for %q: %w", rec.Name, err)
		}
		e.bytesInVol += rec.PayloadBlocks * splitar.BlockSize
	}
	e.dirs.Observe(rec)
	e.producedAny = true

	if e.cfg.Verbose && e.listing != nil {
		if err := writeListingLine(e.listing, e.volumeIndex, e.cfg.SuffixLength, rec); err != nil {
			return xerrors.Errorf("writing listing line: %w", err)
		}
	}
	return nil
}
