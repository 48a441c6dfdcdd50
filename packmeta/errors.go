// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package packmeta parses the v1.x `.packmeta` metadata envelope: the
// file/tree/element header, the name and offset tables, the RID table,
// the per-type definitions (predefined for minor version 7, self-declared
// otherwise), the datastream trees each type owns, and the per-file
// FileMetadataEntry records that select which tree entries belong to
// which file.
//
// Grounded on torchbearer/northlight_internal/packmeta.py's PackMeta,
// PackMetaType and PackMetaFile, written in the idiom of saferwall-pe's
// file.go (Options-free top-level Open, *log.Helper field, soft recovery
// from malformed cross-references rather than aborting the whole parse).
package packmeta

import "errors"

var (
	// ErrUnknownMinorVersion is returned for a minor version below 7.
	ErrUnknownMinorVersion = errors.New("packmeta: unsupported minor version")

	// ErrPredefinedIndexOutOfRange is returned when minor version 7
	// declares more metadata types than the predefined name list covers.
	ErrPredefinedIndexOutOfRange = errors.New("packmeta: type index beyond predefined name list")
)
