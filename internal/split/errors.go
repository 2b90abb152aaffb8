package split

import "golang.org/x/xerrors"

// ErrConfig is returned for invalid configuration: a malformed -S value or a
// missing required argument.
var ErrConfig = xerrors.New("split: invalid configuration")

// ErrFileTooLarge is returned when a single member exceeds the configured
// maximum volume size and FailOnLargeFile is set.
var ErrFileTooLarge = xerrors.New("split: member exceeds max volume size")
