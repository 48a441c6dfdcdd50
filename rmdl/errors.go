// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package rmdl parses `.rmdl` bundles: an 'RMDL' header naming the size
// of a trailing directory of named, sized entries, each entry a BatchDSC
// of hashed datastream containers (or, for `dp_`-prefixed entries, a DP
// side table skipped rather than parsed here).
//
// Grounded on torchbearer/northlight_internal/cid_base.py's RMDL_DSC,
// BatchDSC and HashedDSC, written in the idiom of saferwall-pe's file.go.
package rmdl

import "errors"

var (
	// ErrBadMagic is returned when the file does not open with 'RMDL'.
	ErrBadMagic = errors.New("rmdl: bad magic, expected 'RMDL'")

	// ErrTailTooLarge is returned when the declared tail size would
	// start before the 8-byte header.
	ErrTailTooLarge = errors.New("rmdl: declared tail size exceeds file length")
)
