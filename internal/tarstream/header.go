package tarstream

import (
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Standard ustar header field offsets and widths.
const (
	offName     = 0
	szName      = 100
	offMode     = 100
	szMode      = 8
	offUID      = 108
	szUID       = 8
	offGID      = 116
	szGID       = 8
	offSize     = 124
	szSize      = 12
	offMtime    = 136
	szMtime     = 12
	offChksum   = 148
	szChksum    = 8
	offTypeflag = 156
	offLinkname = 157
	szLinkname  = 100
	offPrefix   = 345
	szPrefix    = 155
)

func trimField(b []byte) string {
	// ustar string fields are NUL-terminated and/or padded with trailing NULs;
	// be lenient about trailing spaces too, since some writers pad that way.
	s := string(b)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, " ")
}

func parseOctal(b []byte) (int64, error) {
	s := strings.TrimRight(string(b), "\x00 ")
	s = strings.TrimLeft(s, " ")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return 0, xerrors.Errorf("parsing octal field %q: %w", s, err)
	}
	return v, nil
}

func isZeroBlock(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// checksums returns the unsigned and signed byte sums of raw, computed with
// the checksum field itself treated as eight ASCII spaces, matching the two
// conventions real tar implementations have historically used.
func checksums(raw []byte) (unsigned, signed int64) {
	for i, b := range raw {
		v := b
		if i >= offChksum && i < offChksum+szChksum {
			v = ' '
		}
		unsigned += int64(v)
		signed += int64(int8(v))
	}
	return unsigned, signed
}

// parseHeader parses a single 512-byte header block into a Record. The
// payload is not read; the caller uses PayloadBlocks to know how many
// blocks of payload follow, and Reader.CopyPayload to fetch them.
func parseHeader(raw [BlockSize]byte) (*Record, error) {
	wantUnsigned, wantSigned := checksums(raw[:])
	got, err := parseOctal(raw[offChksum : offChksum+szChksum])
	if err != nil {
		return nil, xerrors.Errorf("%w: checksum field: %v", ErrMalformedHeader, err)
	}
	if got != wantUnsigned && got != wantSigned {
		return nil, xerrors.Errorf("%w: checksum mismatch: header says %o, computed %o", ErrMalformedHeader, got, wantUnsigned)
	}

	name := trimField(raw[offName : offName+szName])
	if prefix := trimField(raw[offPrefix : offPrefix+szPrefix]); prefix != "" {
		name = prefix + "/" + name
	}

	mode, err := parseOctal(raw[offMode : offMode+szMode])
	if err != nil {
		return nil, xerrors.Errorf("%w: mode field: %v", ErrMalformedHeader, err)
	}
	uid, err := parseOctal(raw[offUID : offUID+szUID])
	if err != nil {
		return nil, xerrors.Errorf("%w: uid field: %v", ErrMalformedHeader, err)
	}
	gid, err := parseOctal(raw[offGID : offGID+szGID])
	if err != nil {
		return nil, xerrors.Errorf("%w: gid field: %v", ErrMalformedHeader, err)
	}
	size, err := parseOctal(raw[offSize : offSize+szSize])
	if err != nil {
		return nil, xerrors.Errorf("%w: size field: %v", ErrMalformedHeader, err)
	}
	mtime, err := parseOctal(raw[offMtime : offMtime+szMtime])
	if err != nil {
		return nil, xerrors.Errorf("%w: mtime field: %v", ErrMalformedHeader, err)
	}

	payloadBlocks := (size + BlockSize - 1) / BlockSize

	rec := &Record{
		Name:          name,
		Kind:          kindFromTypeflag(raw[offTypeflag]),
		LinkTarget:    trimField(raw[offLinkname : offLinkname+szLinkname]),
		Mode:          mode,
		ModTime:       unixTime(mtime),
		UID:           uid,
		GID:           gid,
		PayloadSize:   size,
		PayloadBlocks: payloadBlocks,
		TotalBlocks:   1 + payloadBlocks,
		RawHeader:     raw,
	}
	return rec, nil
}
