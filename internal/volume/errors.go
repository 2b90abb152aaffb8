package volume

import "golang.org/x/xerrors"

// ErrCompressorFailed is returned when the external compressor process for a
// volume exits non-zero or dies from a signal.
var ErrCompressorFailed = xerrors.New("volume: compressor failed")
