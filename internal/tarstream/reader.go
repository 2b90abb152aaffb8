package tarstream

import (
	"io"

	"golang.org/x/xerrors"
)

// copyBufSize bounds the buffer used by CopyPayload, so a single very large
// member never forces a correspondingly large allocation.
const copyBufSize = 256 * 1024

// Reader turns a byte stream into a lazy sequence of Records. It never reads
// a member's payload eagerly: call CopyPayload after Next to fetch it, or
// just call Next again to have the reader skip over it.
type Reader struct {
	r   io.Reader
	buf []byte

	pendingBlocks int64 // payload blocks not yet consumed from the last Record

	// trailer holds the raw bytes of the terminating zero block(s), once
	// Next has returned io.EOF by recognizing them. Most callers ignore it;
	// it exists so a caller that never saw a single real Record can still
	// account for a degenerate input that is nothing but archive padding.
	trailer []byte
}

// NewReader returns a Reader consuming tar blocks from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, buf: make([]byte, copyBufSize)}
}

func (r *Reader) readBlock() ([BlockSize]byte, error) {
	var block [BlockSize]byte
	if _, err := io.ReadFull(r.r, block[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return block, xerrors.Errorf("%w: truncated block: %v", ErrUnexpectedEnd, err)
		}
		return block, err // may be io.EOF, propagated as-is
	}
	return block, nil
}

// discardPending skips over any payload blocks the caller never retrieved
// via CopyPayload for the previous Record, keeping the block stream aligned.
func (r *Reader) discardPending() error {
	for r.pendingBlocks > 0 {
		if _, err := r.readBlock(); err != nil {
			if err == io.EOF {
				return xerrors.Errorf("%w: input ends inside a payload", ErrUnexpectedEnd)
			}
			return err
		}
		r.pendingBlocks--
	}
	return nil
}

// Next returns the next Record, or io.EOF once the archive's two trailing
// all-zero blocks (or, for a truncated stream, a clean EOF at a block
// boundary) have been reached.
func (r *Reader) Next() (*Record, error) {
	if err := r.discardPending(); err != nil {
		return nil, err
	}

	block, err := r.readBlock()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, err
	}

	if isZeroBlock(block[:]) {
		second, err := r.readBlock()
		if err != nil {
			if err == io.EOF {
				// A single trailing zero block without its partner is a
				// truncated archive, not a clean end.
				return nil, xerrors.Errorf("%w: archive ends after a single zero block", ErrUnexpectedEnd)
			}
			return nil, err
		}
		if isZeroBlock(second[:]) {
			r.trailer = append(append([]byte{}, block[:]...), second[:]...)
			return nil, io.EOF
		}
		// The first zero block was not a terminator; resume by treating the
		// second block as the next header.
		block = second
	}

	rec, err := parseHeader(block)
	if err != nil {
		return nil, err
	}
	r.pendingBlocks = rec.PayloadBlocks
	return rec, nil
}

// Trailer returns the raw bytes of the archive's terminating zero block(s),
// if Next has returned io.EOF having recognized them. It is nil until then,
// and nil if the input simply ran out without a terminator.
func (r *Reader) Trailer() []byte {
	return r.trailer
}

// CopyPayload copies the current Record's payload — exactly
// PayloadBlocks*BlockSize bytes, including any zero padding — to dst. It
// must be called at most once per Record returned by Next, before the next
// call to Next.
func (r *Reader) CopyPayload(dst io.Writer) error {
	n := r.pendingBlocks * BlockSize
	r.pendingBlocks = 0
	if n == 0 {
		return nil
	}
	copied, err := io.CopyBuffer(dst, io.LimitReader(r.r, n), r.buf)
	if err != nil {
		return xerrors.Errorf("copying payload: %w", err)
	}
	if copied != n {
		return xerrors.Errorf("%w: payload truncated after %d of %d bytes", ErrUnexpectedEnd, copied, n)
	}
	return nil
}
