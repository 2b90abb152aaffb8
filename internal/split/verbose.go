package split

import (
	"fmt"
	"io"
	"strings"

	"github.com/monoid/splitar/internal/tarstream"
)

var permBits = [9]struct {
	bit int64
	ch  byte
}{
	{0400, 'r'}, {0200, 'w'}, {0100, 'x'},
	{0040, 'r'}, {0020, 'w'}, {0010, 'x'},
	{0004, 'r'}, {0002, 'w'}, {0001, 'x'},
}

func permTriad(mode int64) string {
	var buf [9]byte
	for i, b := range permBits {
		if mode&b.bit != 0 {
			buf[i] = b.ch
		} else {
			buf[i] = '-'
		}
	}
	return string(buf[:])
}

func listingSize(rec *tarstream.Record) int64 {
	if rec.Kind != tarstream.KindRegular {
		return 0
	}
	return rec.PayloadSize
}

func listingName(rec *tarstream.Record) string {
	name := rec.Name
	if rec.Kind == tarstream.KindDirectory && !strings.HasSuffix(name, "/") {
		name += "/"
	}
	return name
}

func listingExtra(rec *tarstream.Record) string {
	switch rec.Kind {
	case tarstream.KindHardLink:
		return " link to " + rec.LinkTarget
	case tarstream.KindSymlink:
		return " -> " + rec.LinkTarget
	default:
		return ""
	}
}

// writeListingLine writes one verbose diagnostic line for rec, currently
// landing in the volume at volumeIndex, per the fixed column format in
// spec.md §6.
func writeListingLine(w io.Writer, volumeIndex, suffixLength int, rec *tarstream.Record) error {
	_, err := fmt.Fprintf(w, "%0*d %s%s %14d %s %s%s\n",
		suffixLength, volumeIndex,
		rec.Kind.String(), permTriad(rec.Mode),
		listingSize(rec),
		rec.ModTime.Local().Format("2006-01-02 15:04:05"),
		listingName(rec), listingExtra(rec),
	)
	return err
}
