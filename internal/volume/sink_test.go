package volume

import (
	"context"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/monoid/splitar"
)

func TestSinkWritesAndCommits(t *testing.T) {
	dir, err := ioutil.TempDir("", "volume")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "output.tar.00000")
	reg := splitar.NewCleanupRegistry()
	s, err := Open(context.Background(), reg, path, Compressor{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("content = %q, want %q", got, "hello")
	}
}

func TestSinkWithCompressor(t *testing.T) {
	if _, err := exec.LookPath("gzip"); err != nil {
		t.Skip("gzip not found in $PATH")
	}

	dir, err := ioutil.TempDir("", "volume")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "output.tar.00000")
	reg := splitar.NewCleanupRegistry()
	s, err := Open(context.Background(), reg, path, Compressor{Cmd: "gzip"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write([]byte("hello, compressed world")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := exec.Command("gzip", "-dc", path).Output()
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "hello, compressed world" {
		t.Errorf("decompressed content = %q, want %q", out, "hello, compressed world")
	}
}

func TestSinkCompressorFailureLeavesNoOutput(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not found in $PATH")
	}

	dir, err := ioutil.TempDir("", "volume")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "output.tar.00000")
	reg := splitar.NewCleanupRegistry()
	s, err := Open(context.Background(), reg, path, Compressor{Cmd: "false"})
	if err != nil {
		t.Fatal(err)
	}
	s.Write([]byte("data"))
	if err := s.Close(); err == nil {
		t.Fatal("expected Close to report the compressor's failure")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no file at %s after compressor failure, stat err = %v", path, err)
	}
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no leftover files in %s, got %v", dir, entries)
	}
}

func TestNameZeroPadsToSuffixLength(t *testing.T) {
	got := Name("out.tar.", 3, 5)
	want := "out.tar.00003"
	if got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
}
