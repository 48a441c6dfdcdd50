// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package bundle decodes the three miscellaneous embedded-blob formats
// spec.md §4.12 groups together: ZLIB-compressed "archive bins",
// streamed-resource bins (fixed-`(v1,v2)`-pair metadata dispatch with a
// back-solved fallback), and UTF-8/UTF-16LE string-table bins. Grounded
// on torchbearer/northlight_internal/binfile.py's BinFileArchive,
// StreamedResource/BinFileStreamedResource, and BinFileStringTable.
package bundle

import "errors"

// ErrBadStreamedResourceMagic is returned when a streamed-resource bin's
// leading magic does not match 0xBADF000D.
var ErrBadStreamedResourceMagic = errors.New("bundle: bad streamed-resource magic")

// ErrUnsupportedStreamedResourceVersion is returned for any version other
// than 1.
var ErrUnsupportedStreamedResourceVersion = errors.New("bundle: unsupported streamed-resource version")

// ErrNameArrayRecoveryFailed is returned when the back-solved metadata
// length recovery scan cannot reconcile any candidate with the declared
// resource count.
var ErrNameArrayRecoveryFailed = errors.New("bundle: could not recover streamed-resource name array")
