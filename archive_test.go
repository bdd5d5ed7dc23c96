// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pacu

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cosnicolaou/pacu/internal/codec"
	"github.com/cosnicolaou/pacu/internal/entry"
	"github.com/cosnicolaou/pacu/internal/huffman"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestPackUnpackRoundTrip(t *testing.T) {
	for _, method := range []codec.Method{codec.MethodStore, codec.MethodZlib, codec.MethodZstd} {
		t.Run(method.String(), func(t *testing.T) {
			src := t.TempDir()
			files := map[string]string{
				"a.txt":      "hello, world",
				"sub/b.txt":  "the quick brown fox jumps over the lazy dog",
				"sub/c.dat":  string(bytes.Repeat([]byte{0}, 4096)),
				"sprite.png": "not really a png but extension opt-out still applies",
			}
			writeTree(t, src, files)

			archivePath := filepath.Join(t.TempDir(), "out.pac")
			n, err := Pack(context.Background(), archivePath, src, method, PackConcurrency(2))
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}
			if n != len(files) {
				t.Fatalf("packed %v entries, want %v", n, len(files))
			}

			dst := t.TempDir()
			extracted, err := Unpack(context.Background(), archivePath, dst, UnpackConcurrency(3))
			if err != nil {
				t.Fatalf("Unpack: %v", err)
			}
			if extracted != len(files) {
				t.Fatalf("extracted %v entries, want %v", extracted, len(files))
			}

			got := readTree(t, dst)
			if len(got) != len(files) {
				t.Fatalf("got %v files, want %v", len(got), len(files))
			}
			for name, want := range files {
				if got[name] != want {
					t.Errorf("%v: got %q, want %q", name, got[name], want)
				}
			}
		})
	}
}

func TestPackSkipsNameTooLong(t *testing.T) {
	src := t.TempDir()
	longName := string(bytes.Repeat([]byte("x"), 70)) + ".txt"
	writeTree(t, src, map[string]string{
		"ok.txt": "kept",
		longName: "dropped",
	})

	archivePath := filepath.Join(t.TempDir(), "out.pac")
	n, err := Pack(context.Background(), archivePath, src, codec.MethodStore)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if n != 1 {
		t.Fatalf("packed %v entries, want 1 (long name should be skipped)", n)
	}

	hdrBuf := make([]byte, headerSize)
	f, err := os.Open(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		t.Fatal(err)
	}
	hdr, err := parseHeader(hdrBuf)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.EntryCount != 1 {
		t.Errorf("header entry count = %v, want 1", hdr.EntryCount)
	}
}

func TestFirstEntryPositionIsAbsoluteFileOffset(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"x": "hello"})

	archivePath := filepath.Join(t.TempDir(), "out.pac")
	if _, err := Pack(context.Background(), archivePath, src, codec.MethodStore); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	hdrBuf := make([]byte, headerSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		t.Fatal(err)
	}
	hdr, err := parseHeader(hdrBuf)
	if err != nil {
		t.Fatal(err)
	}

	fi, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	tailBuf := make([]byte, tailSize)
	if _, err := f.ReadAt(tailBuf, fi.Size()-tailSize); err != nil {
		t.Fatal(err)
	}
	obfIndexSize := getUint32(tailBuf)
	indexStart := fi.Size() - tailSize - int64(obfIndexSize)
	obfIndex := make([]byte, obfIndexSize)
	if _, err := f.ReadAt(obfIndex, indexStart); err != nil {
		t.Fatal(err)
	}
	indexBuf := obfuscate(obfIndex)

	decoded, err := huffman.Decode(indexBuf, int(hdr.EntryCount)*entry.Size)
	if err != nil {
		t.Fatal(err)
	}
	e, err := entry.Unmarshal(decoded[:entry.Size])
	if err != nil {
		t.Fatal(err)
	}
	if e.Position != headerSize {
		t.Errorf("first entry position = %v, want %v (absolute file offset, per format scenario S5)", e.Position, headerSize)
	}
}

func TestUnpackRejectsBadMagic(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "bad.pac")
	if err := os.WriteFile(archivePath, []byte("not a pacu archive at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Unpack(context.Background(), archivePath, t.TempDir()); err == nil {
		t.Fatal("expected error unpacking a file with bad magic")
	}
}

func TestObfuscateIsSelfInverse(t *testing.T) {
	orig := []byte("some index bytes \x00\xff\x01")
	cp := append([]byte(nil), orig...)
	obfuscate(cp)
	obfuscate(cp)
	if !bytes.Equal(orig, cp) {
		t.Fatalf("obfuscate is not self-inverse: got %v, want %v", cp, orig)
	}
}
