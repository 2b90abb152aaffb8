package tarstream

import "golang.org/x/xerrors"

// ErrMalformedHeader is returned when a header block fails its checksum or
// cannot be parsed at the standard ustar offsets.
var ErrMalformedHeader = xerrors.New("tarstream: malformed header")

// ErrUnexpectedEnd is returned when the input ends in the middle of a header
// or a payload, or right after a single all-zero block.
var ErrUnexpectedEnd = xerrors.New("tarstream: unexpected end of input")
