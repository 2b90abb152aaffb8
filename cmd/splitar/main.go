// Command splitar reads a tar stream and writes it out as a sequence of
// numbered, size-bounded volumes. See splitarHelp below, or run with
// -help, for usage.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/xerrors"

	"github.com/monoid/splitar"
	"github.com/monoid/splitar/internal/split"
	"github.com/monoid/splitar/internal/volume"
)

const splitarHelp = `splitar [-flags] <input.tar> <output-prefix>

Split a tar stream into a sequence of numbered, independently extractable
volumes, optionally piping each through an external compressor.

<input.tar> may be - to read from standard input.

Examples:
  % splitar -S 100M backup.tar volumes/backup.tar.
  % splitar -S 1G --compress gzip --recreate-dirs -v backup.tar volumes/backup.tar.
`

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		if isatty.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(os.Stderr, "splitar: reading tar data from a terminal, waiting for input (^D to end)")
		}
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("opening input %s: %w", path, err)
	}
	return f, nil
}

func run(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("splitar", flag.ExitOnError)
	fset.Usage = usage(fset, splitarHelp)

	size := fset.String("S", "", "maximum size per output volume, e.g. 100K, 35M, 2G (required)")
	suffixLength := fset.Int("suffix-length", splitar.DefaultSuffixLength, "width of the zero-padded decimal volume index")
	compress := fset.String("compress", "", "external command each volume is piped through, e.g. gzip")
	recreateDirs := fset.Bool("recreate-dirs", false, "replay parent directory headers at the start of every volume after the first")
	failOnLargeFile := fset.Bool("fail-on-large-file", false, "abort instead of emitting an oversized member alone in its own volume")
	verbose := fset.Bool("verbose", false, "print a listing line per member to stderr")
	fset.BoolVar(verbose, "v", false, "shorthand for -verbose")
	fset.Parse(args)

	if *size == "" {
		fset.Usage()
		return xerrors.Errorf("%w: -S is required", split.ErrConfig)
	}
	maxSize, err := split.ParseSize(*size)
	if err != nil {
		return err
	}
	if maxSize <= 0 {
		return xerrors.Errorf("%w: -S must describe a positive size", split.ErrConfig)
	}

	if fset.NArg() != 2 {
		fset.Usage()
		return xerrors.Errorf("%w: expected <input.tar> <output-prefix>, got %d positional argument(s)", split.ErrConfig, fset.NArg())
	}
	inputPath, outputPrefix := fset.Arg(0), fset.Arg(1)

	var comp volume.Compressor
	if *compress != "" {
		comp = volume.Compressor{Cmd: *compress}
	}

	in, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	cfg := split.Config{
		MaxSize:         maxSize,
		OutputPrefix:    outputPrefix,
		SuffixLength:    *suffixLength,
		Compress:        comp,
		RecreateDirs:    *recreateDirs,
		FailOnLargeFile: *failOnLargeFile,
		Verbose:         *verbose,
	}

	e := split.NewEngine(cfg, in, os.Stderr)
	return e.Run(ctx)
}

func main() {
	ctx, canc := splitar.InterruptibleContext()
	defer canc()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
