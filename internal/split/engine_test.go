package split

import (
	"archive/tar"
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/klauspost/pgzip"

	"github.com/monoid/splitar/internal/volume"
)

func runEngine(t *testing.T, cfg Config, input []byte, verbose *bytes.Buffer) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "split")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	cfg.OutputPrefix = filepath.Join(dir, "output.tar.")
	if cfg.SuffixLength == 0 {
		cfg.SuffixLength = 5
	}
	e := NewEngine(cfg, bytes.NewReader(input), verbose)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	return dir
}

func listVolumes(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRawZeroInputPassesThroughVerbatim(t *testing.T) {
	input := make([]byte, 1024) // two all-zero blocks, no real member ever parses
	dir := runEngine(t, Config{MaxSize: 100 * 1024}, input, nil)

	names := listVolumes(t, dir)
	if len(names) != 1 || names[0] != "output.tar.00000" {
		t.Fatalf("volumes = %v, want [output.tar.00000]", names)
	}
	got, err := ioutil.ReadFile(filepath.Join(dir, "output.tar.00000"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, input) {
		t.Errorf("content mismatch: got %d bytes, want %d bytes of zero", len(got), len(input))
	}
}

func TestSuffixLengthControlsVolumeNaming(t *testing.T) {
	input := make([]byte, 1024)
	dir := runEngine(t, Config{MaxSize: 100 * 1024, SuffixLength: 8}, input, nil)

	names := listVolumes(t, dir)
	if len(names) != 1 || names[0] != "output.tar.00000000" {
		t.Fatalf("volumes = %v, want [output.tar.00000000]", names)
	}
}

func TestSingleSmallFileOmitsArchiveTrailer(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{Name: "a.txt", Size: 4, Mode: 0644}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte("abcd")); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err) // this appends the real tar trailer padding
	}
	input := buf.Bytes()

	dir := runEngine(t, Config{MaxSize: 100 * 1024}, input, nil)
	got, err := ioutil.ReadFile(filepath.Join(dir, "output.tar.00000"))
	if err != nil {
		t.Fatal(err)
	}
	// Exactly one header block plus one payload block: the trailer and any
	// record-size padding tarfile-style writers append must not appear.
	if len(got) != 1024 {
		t.Fatalf("len(output) = %d, want 1024 (header + one padded payload block)", len(got))
	}
	if !bytes.Equal(got, input[:1024]) {
		t.Errorf("output does not match the member's header+payload prefix of the input")
	}
}

func buildSplitFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for i := 0; i < 10; i++ {
		data := bytes.Repeat([]byte("1234"), 1024*i)
		hdr := &tar.Header{Name: "theobject" + string(rune('0'+i)), Size: int64(len(data)), Mode: 0644}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSplitsIntoExpectedVolumeCount(t *testing.T) {
	input := buildSplitFixture(t)

	for _, tc := range []struct {
		size  int64
		count int
	}{
		{40 * 1024, 6},
		{80 * 1024, 3},
	} {
		dir := runEngine(t, Config{MaxSize: tc.size}, input, nil)
		names := listVolumes(t, dir)
		if len(names) != tc.count {
			t.Errorf("-S %d: got %d volumes, want %d", tc.size, len(names), tc.count)
		}
	}
}

func TestFailOnLargeFileStopsAfterEarlierVolumes(t *testing.T) {
	input := buildSplitFixture(t)

	dir, err := ioutil.TempDir("", "split")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg := Config{
		MaxSize:         20 * 1024,
		OutputPrefix:    filepath.Join(dir, "output.tar."),
		SuffixLength:    5,
		FailOnLargeFile: true,
	}
	e := NewEngine(cfg, bytes.NewReader(input), nil)
	if err := e.Run(context.Background()); err == nil {
		t.Fatal("expected Run to fail once a member exceeds max_size")
	}

	names := listVolumes(t, dir)
	if len(names) != 2 {
		t.Fatalf("volumes = %v, want exactly 2 preserved from before the failure", names)
	}
}

func TestCompressorFailureLeavesNoVolumes(t *testing.T) {
	input := buildSplitFixture(t)
	dir, err := ioutil.TempDir("", "split")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg := Config{
		MaxSize:      30 * 1024,
		OutputPrefix: filepath.Join(dir, "output.tar."),
		SuffixLength: 5,
		Compress:     volume.Compressor{Cmd: "false"},
	}
	e := NewEngine(cfg, bytes.NewReader(input), nil)
	if err := e.Run(context.Background()); err == nil {
		t.Fatal("expected Run to report the compressor failure")
	}
	names := listVolumes(t, dir)
	if len(names) != 0 {
		t.Fatalf("volumes = %v, want none left after a compressor failure", names)
	}
}

var verboseLineRE = regexp.MustCompile(`^\d{5} .{10} +\d+ \d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} .*$`)

func TestVerboseListingLineFormat(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{Name: "thedir", Typeflag: tar.TypeDir, Mode: 0644}); err != nil {
		t.Fatal(err)
	}
	if err := tw.WriteHeader(&tar.Header{Name: "a.txt", Size: 4, Mode: 0644}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte("abcd")); err != nil {
		t.Fatal(err)
	}
	if err := tw.WriteHeader(&tar.Header{Name: "link", Typeflag: tar.TypeLink, Linkname: "a.txt", Mode: 0644}); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	var verbose bytes.Buffer
	runEngine(t, Config{MaxSize: 100 * 1024, Verbose: true}, buf.Bytes(), &verbose)

	lines := bytes.Split(bytes.TrimRight(verbose.Bytes(), "\n"), []byte("\n"))
	if len(lines) != 3 {
		t.Fatalf("got %d verbose lines, want 3:\n%s", len(lines), verbose.String())
	}
	for _, line := range lines {
		if !verboseLineRE.Match(line) {
			t.Errorf("line %q does not match expected column format", line)
		}
	}
	if !bytes.Contains(lines[0], []byte("thedir/")) {
		t.Errorf("directory line %q missing trailing slash on name", lines[0])
	}
	if !bytes.Contains(lines[2], []byte("link to a.txt")) {
		t.Errorf("hard link line %q missing %q", lines[2], "link to a.txt")
	}
	// a.txt has a 4-byte payload padded to a 512-byte block; the listing must
	// show the declared size (4), not the padded block size (512).
	if !bytes.Contains(lines[1], []byte(" 4 ")) {
		t.Errorf("regular file line %q should show declared payload size 4, not the block-padded size:\n%s", lines[1], lines[1])
	}
}

// buildNestedFixture builds the canonical reference tree used throughout
// the test suite: a directory tree with an out-of-order member and a
// duplicate directory entry, each file large enough that a handful of them
// force a rotation at modest -S values.
func buildNestedFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	writeDir := func(name string) {
		if err := tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeDir, Mode: 0755}); err != nil {
			t.Fatal(err)
		}
	}
	writeFile := func(name string, n int) {
		data := bytes.Repeat([]byte("x"), n)
		if err := tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(data)), Mode: 0644}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(data); err != nil {
			t.Fatal(err)
		}
	}

	writeDir("thedir")
	writeDir("thedir/nested1")
	writeFile("thedir/nested1/file1", 2048)
	writeDir("thedir/nested1/somedir")
	writeFile("thedir/nested1/file2", 2048)
	writeDir("thedir/nested2")
	writeFile("thedir/nested2/file1", 2048)
	writeFile("thedir/nested2/file2", 2048)
	writeFile("thedir/nested1/out-of-order", 2048)
	writeDir("thedir/nested1/somedir") // duplicate directory entry

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// TestCompressedVolumesAreIndependentlyGunzippable reproduces spec.md §8
// scenario 6: with --compress gzip --recreate-dirs, every produced volume
// must gunzip on its own into a valid tar fragment.
func TestCompressedVolumesAreIndependentlyGunzippable(t *testing.T) {
	if _, err := exec.LookPath("gzip"); err != nil {
		t.Skip("gzip not found in $PATH")
	}

	input := buildNestedFixture(t)
	dir := runEngine(t, Config{
		MaxSize:      8 * 1024,
		Compress:     volume.Compressor{Cmd: "gzip"},
		RecreateDirs: true,
	}, input, nil)

	names := listVolumes(t, dir)
	if len(names) < 2 {
		t.Fatalf("volumes = %v, want at least 2 to exercise independent decompression", names)
	}

	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		zr, err := pgzip.NewReader(f)
		if err != nil {
			t.Fatalf("volume %s: not a valid gzip member: %v", name, err)
		}
		data, err := ioutil.ReadAll(zr)
		if err != nil {
			t.Fatalf("volume %s: decompression failed: %v", name, err)
		}
		zr.Close()
		f.Close()

		if len(data)%512 != 0 {
			t.Errorf("volume %s: decompressed size %d not block-aligned", name, len(data))
		}
		tr := tar.NewReader(bytes.NewReader(data))
		if _, err := tr.Next(); err != nil {
			t.Errorf("volume %s: decompressed content does not start with a readable tar header: %v", name, err)
		}
	}
}
