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

	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding"

	"github.com/cosnicolaou/pacu/internal/codec"
	"github.com/cosnicolaou/pacu/internal/codepage"
	"github.com/cosnicolaou/pacu/internal/entry"
	"github.com/cosnicolaou/pacu/internal/huffman"
	"github.com/cosnicolaou/pacu/internal/pool"
	"github.com/cosnicolaou/pacu/internal/walk"
)

type packOpts struct {
	concurrency int
	verbose     bool
	progressCh  chan<- Progress
	nameEnc     encoding.Encoding
}

// PackOption configures Pack.
type PackOption func(*packOpts)

// PackConcurrency sets the number of worker goroutines reading and
// compressing source files. The default is runtime.GOMAXPROCS(-1).
func PackConcurrency(n int) PackOption {
	return func(o *packOpts) { o.concurrency = n }
}

// PackNameEncoding transcodes each entry's name from UTF-8 into enc
// before it is written to the archive's index, for interoperability
// with tools that expect names in a legacy codepage. The default is
// passthrough UTF-8.
func PackNameEncoding(enc encoding.Encoding) PackOption {
	return func(o *packOpts) { o.nameEnc = enc }
}

// PackVerbose enables per-file diagnostic logging to the standard
// logger.
func PackVerbose(v bool) PackOption {
	return func(o *packOpts) { o.verbose = v }
}

// PackSendUpdates sets the channel Pack sends a Progress on for every
// entry it commits, successful or not.
func PackSendUpdates(ch chan<- Progress) PackOption {
	return func(o *packOpts) { o.progressCh = ch }
}

// zlibLevelFor reproduces the source tool's historical quirk: the
// single-threaded path compresses at zlib's default level, the
// worker-pool path at best compression. Concurrency of 1 is treated as
// the single-threaded path.
func zlibLevelFor(concurrency int) int {
	if concurrency <= 1 {
		return zlib.DefaultCompression
	}
	return zlib.BestCompression
}

type packResult struct {
	name                          string
	blob                          []byte
	originalSize, compressedSize int
	duration                      time.Duration
}

// Pack walks sourceDir, compresses every regular file it finds using
// method, and writes a new archive to archivePath. Per-file read or
// compress failures, and names too long to fit an entry's 64-byte name
// field, are logged and skipped rather than aborting the whole
// operation; Pack only returns an error when sourceDir cannot be walked
// or for failures that make the archive itself unwritable.
func Pack(ctx context.Context, archivePath, sourceDir string, method codec.Method, opts ...PackOption) (committed int, err error) {
	o := packOpts{concurrency: runtime.GOMAXPROCS(-1)}
	for _, fn := range opts {
		fn(&o)
	}

	paths, err := walk.Files(sourceDir)
	if err != nil {
		return 0, fmt.Errorf("pacu: walk %v: %w", sourceDir, err)
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return 0, fmt.Errorf("pacu: create %v: %w", archivePath, err)
	}
	defer out.Close()

	if _, err := out.Write(Header{Method: method}.marshal()); err != nil {
		return 0, fmt.Errorf("pacu: write header: %w", err)
	}

	adapter := &codec.Adapter{ZlibLevel: zlibLevelFor(o.concurrency)}

	task := func(ctx context.Context, relPath string) (packResult, error) {
		start := time.Now()
		full := filepath.Join(sourceDir, relPath)
		src, err := os.ReadFile(full)
		if err != nil {
			return packResult{name: relPath}, fmt.Errorf("read %v: %w", full, err)
		}
		blob, origSize, compSize, err := adapter.Compress(method, relPath, src)
		if err != nil {
			return packResult{name: relPath}, fmt.Errorf("compress %v: %w", full, err)
		}
		return packResult{
			name:           relPath,
			blob:           blob,
			originalSize:   origSize,
			compressedSize: compSize,
			duration:       time.Since(start),
		}, nil
	}

	results, errs := pool.RunPack(ctx, paths, o.concurrency, task)

	var entries []entry.Entry
	position := uint32(headerSize)
	for i, r := range results {
		if err := errs[i]; err != nil {
			log.Printf("pacu: skipping %v: %v", r.name, err)
			if o.progressCh != nil {
				o.progressCh <- Progress{Name: r.name, Err: err}
			}
			continue
		}
		nameBytes, err := codepage.Encode(r.name, o.nameEnc)
		if err != nil {
			log.Printf("pacu: skipping %v: %v", r.name, err)
			if o.progressCh != nil {
				o.progressCh <- Progress{Name: r.name, Err: err}
			}
			continue
		}
		var e entry.Entry
		if err := e.SetName(nameBytes); err != nil {
			log.Printf("pacu: skipping %v: %v", r.name, err)
			if o.progressCh != nil {
				o.progressCh <- Progress{Name: r.name, Err: ErrNameTooLong}
			}
			continue
		}
		if _, err := out.Write(r.blob); err != nil {
			return committed, fmt.Errorf("pacu: write payload for %v: %w", r.name, err)
		}
		e.Position = position
		e.OriginalSize = uint32(r.originalSize)
		e.CompressedSize = uint32(r.compressedSize)
		position += uint32(len(r.blob))
		entries = append(entries, e)
		committed++
		if o.verbose {
			log.Printf("pacu: packed %v (%v -> %v bytes) in %v", r.name, r.originalSize, r.compressedSize, r.duration)
		}
		if o.progressCh != nil {
			o.progressCh <- Progress{Name: r.name, OriginalSize: r.originalSize, CompressedSize: r.compressedSize, Duration: r.duration}
		}
	}

	indexBuf := make([]byte, 0, len(entries)*entry.Size)
	for _, e := range entries {
		indexBuf = append(indexBuf, e.MarshalBinary()...)
	}
	encodedIndex := huffman.Encode(indexBuf)
	obfIndex := obfuscate(encodedIndex)

	if _, err := out.Write(obfIndex); err != nil {
		return committed, fmt.Errorf("pacu: write index: %w", err)
	}
	tail := make([]byte, tailSize)
	putUint32(tail, uint32(len(obfIndex)))
	if _, err := out.Write(tail); err != nil {
		return committed, fmt.Errorf("pacu: write index size: %w", err)
	}

	if _, err := out.Seek(4, 0); err != nil {
		return committed, fmt.Errorf("pacu: seek to patch entry count: %w", err)
	}
	countBuf := make([]byte, 4)
	putUint32(countBuf, uint32(committed))
	if _, err := out.Write(countBuf); err != nil {
		return committed, fmt.Errorf("pacu: patch entry count: %w", err)
	}

	return committed, nil
}
