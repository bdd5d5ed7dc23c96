// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pacu

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/text/encoding"

	"github.com/cosnicolaou/pacu/internal/codec"
	"github.com/cosnicolaou/pacu/internal/codepage"
	"github.com/cosnicolaou/pacu/internal/entry"
	"github.com/cosnicolaou/pacu/internal/huffman"
	"github.com/cosnicolaou/pacu/internal/pool"
)

type unpackOpts struct {
	concurrency int
	verbose     bool
	progressCh  chan<- Progress
	nameEnc     encoding.Encoding
}

// UnpackOption configures Unpack.
type UnpackOption func(*unpackOpts)

// UnpackConcurrency sets the number of worker goroutines extracting
// entries. The default is runtime.GOMAXPROCS(-1).
func UnpackConcurrency(n int) UnpackOption {
	return func(o *unpackOpts) { o.concurrency = n }
}

// UnpackVerbose enables per-file diagnostic logging to the standard
// logger.
func UnpackVerbose(v bool) UnpackOption {
	return func(o *unpackOpts) { o.verbose = v }
}

// UnpackSendUpdates sets the channel Unpack sends a Progress on for
// every entry it extracts, successful or not.
func UnpackSendUpdates(ch chan<- Progress) UnpackOption {
	return func(o *unpackOpts) { o.progressCh = ch }
}

// UnpackNameEncoding decodes each entry's name from enc back to UTF-8
// before it is used as an output path. It must match whatever
// PackNameEncoding the archive was written with. The default is
// passthrough UTF-8.
func UnpackNameEncoding(enc encoding.Encoding) UnpackOption {
	return func(o *unpackOpts) { o.nameEnc = enc }
}

// Unpack reads the archive at archivePath and extracts every entry into
// targetDir, recreating whatever subdirectories its name implies.
// Per-entry decompress or write failures are logged and skipped; Unpack
// only returns an error when the archive itself cannot be opened or
// parsed, or when targetDir cannot be created.
func Unpack(ctx context.Context, archivePath, targetDir string, opts ...UnpackOption) (extracted int, err error) {
	o := unpackOpts{concurrency: runtime.GOMAXPROCS(-1)}
	for _, fn := range opts {
		fn(&o)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("pacu: open %v: %w", archivePath, err)
	}
	defer f.Close()

	hdrBuf := make([]byte, headerSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		return 0, fmt.Errorf("pacu: read header: %w", err)
	}
	hdr, err := parseHeader(hdrBuf)
	if err != nil {
		return 0, err
	}

	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("pacu: stat %v: %w", archivePath, err)
	}
	size := fi.Size()
	if size < int64(headerSize+tailSize) {
		return 0, fmt.Errorf("pacu: archive too short: %v bytes", size)
	}

	tailBuf := make([]byte, tailSize)
	if _, err := f.ReadAt(tailBuf, size-tailSize); err != nil {
		return 0, fmt.Errorf("pacu: read index size: %w", err)
	}
	obfIndexSize := getUint32(tailBuf)
	indexStart := size - tailSize - int64(obfIndexSize)
	if indexStart < int64(headerSize) {
		return 0, ErrIndexTruncated
	}

	obfIndex := make([]byte, obfIndexSize)
	if _, err := f.ReadAt(obfIndex, indexStart); err != nil {
		return 0, fmt.Errorf("pacu: read index: %w", err)
	}
	indexBuf := obfuscate(obfIndex)

	wantBytes := int(hdr.EntryCount) * entry.Size
	decoded, err := huffman.Decode(indexBuf, wantBytes)
	if err != nil {
		return 0, fmt.Errorf("pacu: decode index: %w", err)
	}

	entries := make([]entry.Entry, 0, hdr.EntryCount)
	for off := 0; off+entry.Size <= len(decoded); off += entry.Size {
		e, err := entry.Unmarshal(decoded[off : off+entry.Size])
		if err != nil {
			return 0, fmt.Errorf("pacu: parse entry %v: %w", len(entries), err)
		}
		entries = append(entries, e)
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return 0, fmt.Errorf("pacu: create %v: %w", targetDir, err)
	}

	adapter := codec.NewAdapter()

	task := func(ctx context.Context, slice []entry.Entry) (int, error) {
		rf, err := os.Open(archivePath)
		if err != nil {
			return 0, fmt.Errorf("open %v: %w", archivePath, err)
		}
		defer rf.Close()

		n := 0
		for _, e := range slice {
			start := time.Now()
			name, err := codepage.Decode(e.Name(), o.nameEnc)
			if err != nil {
				log.Printf("pacu: skipping entry at position %v: %v", e.Position, err)
				if o.progressCh != nil {
					o.progressCh <- Progress{Err: err}
				}
				continue
			}
			if err := extractOne(rf, targetDir, name, e, hdr.Method, adapter); err != nil {
				log.Printf("pacu: skipping %v: %v", name, err)
				if o.progressCh != nil {
					o.progressCh <- Progress{Name: name, Err: err}
				}
				continue
			}
			n++
			if o.verbose {
				log.Printf("pacu: extracted %v (%v -> %v bytes) in %v", name, e.CompressedSize, e.OriginalSize, time.Since(start))
			}
			if o.progressCh != nil {
				o.progressCh <- Progress{
					Name:           name,
					OriginalSize:   int(e.OriginalSize),
					CompressedSize: int(e.CompressedSize),
					Duration:       time.Since(start),
				}
			}
		}
		return n, nil
	}

	extracted, errs := pool.RunExtract(ctx, entries, o.concurrency, task)
	for _, err := range errs {
		if err != nil {
			log.Printf("pacu: extraction worker error: %v", err)
		}
	}
	return extracted, nil
}

func extractOne(rf *os.File, targetDir, name string, e entry.Entry, method codec.Method, adapter *codec.Adapter) error {
	payload := make([]byte, e.CompressedSize)
	if _, err := rf.ReadAt(payload, int64(e.Position)); err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	data, err := adapter.Decompress(method, payload, int(e.OriginalSize))
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	dst := filepath.Join(targetDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
