package volume

import "fmt"

// Name returns the output path for the volume at index under prefix, padding
// the index to suffixLength digits (e.g. prefix "out.tar." with index 3 and
// suffixLength 5 gives "out.tar.00003").
func Name(prefix string, index int, suffixLength int) string {
	return fmt.Sprintf("%s%0*d", prefix, suffixLength, index)
}
