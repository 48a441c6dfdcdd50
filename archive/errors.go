// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package archive decodes the two Northlight package-archive generations
// (v1.x .rmdp/.bin sidecar, v2.x .rmdtoc) into the raw folder/file/chunk
// tables the vfs package normalizes into a unified filesystem.
//
// Grounded on torchbearer/northlight_engine/readers.py's Reader/ReaderNLEv10/
// ReaderNLEv20 hierarchy, written in the idiom of saferwall-pe's file.go
// (Options struct, *log.Helper field, Anomalies accumulator, sentinel
// errors declared once in errors.go).
package archive

import "errors"

// Sentinel errors. No component in this module uses text matching for
// control flow (spec.md §7).
var (
	// ErrMissingSidecar is returned when a v1 .rmdp archive's sibling
	// .bin file does not exist.
	ErrMissingSidecar = errors.New("archive: missing sibling .bin file")

	// ErrEmptySidecar is returned when the sibling .bin file is zero
	// length.
	ErrEmptySidecar = errors.New("archive: sibling .bin file is empty")

	// ErrUnknownMinorVersion is returned for a v_minor value outside
	// {2, 3, 7, 8, 9}.
	ErrUnknownMinorVersion = errors.New("archive: unrecognized v1 minor version")

	// ErrBadMagic is returned when a .rmdtoc file's COTR magic does not
	// match.
	ErrBadMagic = errors.New("archive: bad COTR magic in .rmdtoc header")

	// ErrTOCSizeMismatch is returned (as a warning-grade condition,
	// triggering a cache rebuild rather than aborting) when a cached
	// decompressed TOC's size does not match the predicted size.
	ErrTOCSizeMismatch = errors.New("archive: decompressed TOC size mismatch")

	// ErrUnsupportedExtension is returned by OpenV2 for a path whose
	// extension is not .rmdtoc.
	ErrUnsupportedExtension = errors.New("archive: unsupported archive extension")
)

// Anomalies are soft, non-fatal findings recorded on a Reader the way
// saferwall-pe's pe.File.Anomalies accumulates per-directory parse
// failures without aborting the whole parse (spec.md §7 propagation
// policy: recover locally for optional data, surface only for
// structural failures).
const (
	AnoTOCCacheRebuilt  = "decompressed TOC cache missing or size mismatch, rebuilt from chunks"
	AnoV1Disambiguation = "v1 minor version 2 disambiguated by filesystem-array size check"
)
