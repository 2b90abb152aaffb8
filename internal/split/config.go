package split

import (
	"strconv"

	"golang.org/x/xerrors"

	"github.com/monoid/splitar/internal/volume"
)

// Config holds the Splitter Engine's configuration, gathered from CLI flags
// by cmd/splitar.
type Config struct {
	MaxSize         int64
	OutputPrefix    string
	SuffixLength    int
	Compress        volume.Compressor
	RecreateDirs    bool
	FailOnLargeFile bool
	Verbose         bool
}

// ParseSize parses a human-readable size such as "100K", "35M" or "2G" into a
// byte count. Suffixes are binary: K=1024, M=1024*1024, G=1024*1024*1024.
// A bare number of bytes is also accepted.
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, xerrors.Errorf("%w: empty size", ErrConfig)
	}

	mult := int64(1)
	numPart := s
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1024
		numPart = s[:len(s)-1]
	case 'M', 'm':
		mult = 1024 * 1024
		numPart = s[:len(s)-1]
	case 'G', 'g':
		mult = 1024 * 1024 * 1024
		numPart = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("%w: invalid size %q: %v", ErrConfig, s, err)
	}
	if n < 0 {
		return 0, xerrors.Errorf("%w: size must not be negative: %q", ErrConfig, s)
	}
	return n * mult, nil
}
