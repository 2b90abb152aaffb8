package tarstream

import (
	"time"

	"github.com/monoid/splitar"
)

// BlockSize is the tar block size, re-exported here so callers that only
// import tarstream don't also need the root package.
const BlockSize = splitar.BlockSize

// Kind identifies the type of a tar member, decoded from the header's
// typeflag byte.
type Kind byte

const (
	KindRegular Kind = iota
	KindHardLink
	KindSymlink
	KindCharDevice
	KindBlockDevice
	KindDirectory
	KindFIFO
	KindOther
)

// String returns the single-letter verbose-listing code for k (spec.md §6).
func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "d"
	case KindRegular:
		return "-"
	case KindHardLink:
		return "h"
	case KindSymlink:
		return "l"
	case KindFIFO:
		return "p"
	case KindCharDevice:
		return "c"
	case KindBlockDevice:
		return "b"
	default:
		return "?"
	}
}

// kindFromTypeflag maps a raw ustar typeflag byte to a Kind. Anything not
// explicitly recognized (including pax extended headers and GNU
// longname/longlink blocks) becomes KindOther and is passed through
// verbatim; no special semantics are attached to it.
func kindFromTypeflag(b byte) Kind {
	switch b {
	case '0', 0:
		return KindRegular
	case '1':
		return KindHardLink
	case '2':
		return KindSymlink
	case '3':
		return KindCharDevice
	case '4':
		return KindBlockDevice
	case '5':
		return KindDirectory
	case '6':
		return KindFIFO
	default:
		return KindOther
	}
}

// Record is a parsed tar member: a header plus everything needed to locate
// and copy its payload, without having read the payload itself yet.
type Record struct {
	Name       string
	Kind       Kind
	LinkTarget string

	Mode    int64
	ModTime time.Time
	UID     int64
	GID     int64

	PayloadSize   int64
	PayloadBlocks int64
	TotalBlocks   int64

	// RawHeader is the exact 512 bytes read from the input, reproduced
	// verbatim on output so checksums and any extension data embedded in
	// reserved header fields survive untouched.
	RawHeader [BlockSize]byte
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}
