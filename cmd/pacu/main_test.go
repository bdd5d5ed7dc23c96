// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"testing"

	"github.com/schollz/progressbar/v2"

	"github.com/cosnicolaou/pacu"
)

func TestDrainProgressAggregatesErrorsWithoutPanicking(t *testing.T) {
	ch := make(chan pacu.Progress, 4)
	ch <- pacu.Progress{Name: "a.txt", OriginalSize: 10, CompressedSize: 10}
	ch <- pacu.Progress{Name: "b.txt", Err: pacu.ErrNameTooLong}
	close(ch)

	bar := progressbar.NewOptions(-1)
	drainProgress(ch, bar)
}
