// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command pacu packs a directory tree into a PACu archive, or unpacks
// one back onto disk.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"

	"cloudeng.io/cmdutil"
	"cloudeng.io/cmdutil/subcmd"
	"cloudeng.io/errors"
	"github.com/schollz/progressbar/v2"

	"github.com/cosnicolaou/pacu"
	"github.com/cosnicolaou/pacu/internal/codec"
	"github.com/cosnicolaou/pacu/internal/codepage"
)

type CommonFlags struct {
	Concurrency int    `subcmd:"concurrency,4,'concurrency for the pack/unpack operation'"`
	Verbose     bool   `subcmd:"verbose,false,verbose debug/trace information"`
	Codepage    string `subcmd:"codepage,,'legacy codepage to transcode entry names with (gbk, gb18030, big5, shift-jis, euc-kr)'"`
}

type packFlags struct {
	CommonFlags
	Method      string `subcmd:"method,zlib,'compression method: store, zlib or zstd'"`
	ProgressBar bool   `subcmd:"progress,true,display a progress bar"`
}

type unpackFlags struct {
	CommonFlags
	ProgressBar bool `subcmd:"progress,true,display a progress bar"`
}

var cmdSet *subcmd.CommandSet

func init() {
	defaultConcurrency := map[string]interface{}{
		"concurrency": runtime.GOMAXPROCS(-1),
	}

	packCmd := subcmd.NewCommand("pack",
		subcmd.MustRegisterFlagStruct(&packFlags{}, defaultConcurrency, nil),
		pack, subcmd.ExactlyNumArguments(2))
	packCmd.Document(`pack a directory tree into a new PACu archive: pacu pack <archive.pac> <source-dir>`)

	unpackCmd := subcmd.NewCommand("unpack",
		subcmd.MustRegisterFlagStruct(&unpackFlags{}, defaultConcurrency, nil),
		unpack, subcmd.ExactlyNumArguments(2))
	unpackCmd.Document(`unpack a PACu archive into a directory: pacu unpack <archive.pac> <target-dir>`)

	cmdSet = subcmd.NewCommandSet(packCmd, unpackCmd)
	cmdSet.Document(`pack and unpack PACu archives.`)
}

func main() {
	cmdSet.MustDispatch(context.Background())
}

func pack(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*packFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	method, err := codec.ParseMethod(cl.Method)
	if err != nil {
		return err
	}
	enc, err := codepage.Lookup(cl.Codepage)
	if err != nil {
		return err
	}

	archivePath, sourceDir := args[0], args[1]

	opts := []pacu.PackOption{
		pacu.PackConcurrency(cl.Concurrency),
		pacu.PackVerbose(cl.Verbose),
		pacu.PackNameEncoding(enc),
	}

	var progressCh chan pacu.Progress
	var done chan struct{}
	if cl.ProgressBar {
		progressCh = make(chan pacu.Progress, cl.Concurrency)
		opts = append(opts, pacu.PackSendUpdates(progressCh))
		bar := progressbar.NewOptions(-1, progressbar.OptionSetWriter(os.Stderr))
		done = make(chan struct{})
		go func() {
			drainProgress(progressCh, bar)
			close(done)
		}()
	}

	n, err := pacu.Pack(ctx, archivePath, sourceDir, method, opts...)
	if cl.ProgressBar {
		close(progressCh)
		<-done
	}
	fmt.Fprintf(os.Stderr, "\npacked %v entries into %v\n", n, archivePath)
	return err
}

func unpack(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*unpackFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	enc, err := codepage.Lookup(cl.Codepage)
	if err != nil {
		return err
	}

	archivePath, targetDir := args[0], args[1]

	opts := []pacu.UnpackOption{
		pacu.UnpackConcurrency(cl.Concurrency),
		pacu.UnpackVerbose(cl.Verbose),
		pacu.UnpackNameEncoding(enc),
	}

	var progressCh chan pacu.Progress
	var done chan struct{}
	if cl.ProgressBar {
		progressCh = make(chan pacu.Progress, cl.Concurrency)
		opts = append(opts, pacu.UnpackSendUpdates(progressCh))
		bar := progressbar.NewOptions(-1, progressbar.OptionSetWriter(os.Stderr))
		done = make(chan struct{})
		go func() {
			drainProgress(progressCh, bar)
			close(done)
		}()
	}

	n, err := pacu.Unpack(ctx, archivePath, targetDir, opts...)
	if cl.ProgressBar {
		close(progressCh)
		<-done
	}
	fmt.Fprintf(os.Stderr, "\nunpacked %v entries into %v\n", n, targetDir)
	return err
}

func drainProgress(ch chan pacu.Progress, bar *progressbar.ProgressBar) {
	errs := errors.M{}
	for p := range ch {
		if p.Err != nil {
			errs.Append(p.Err)
			log.Printf("pacu: %v: %v", p.Name, p.Err)
			continue
		}
		bar.Add(1)
	}
	if err := errs.Err(); err != nil {
		log.Printf("pacu: completed with errors: %v", err)
	}
}
