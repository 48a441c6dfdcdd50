// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package vfs unifies the two archive reader generations (archive/v1,
// archive/v2) behind one folder/file/chunk/archive model: parent/child
// navigation, path composition, export pathing, and lazy
// chunk-assembled file reads.
//
// Grounded on torchbearer/northlight_engine/engine.py's GenericVFS/
// Folder/File/Admin/TreeAdmin/DataAdmin/MetaAdmin/Archive/Chunk classes,
// written in the idiom of saferwall-pe's file.go (Options-free
// constructor, *log.Helper field, sentinel errors declared once here).
package vfs

import "errors"

var (
	// ErrUnsupportedExtension is returned by NewAdmin's reader for a
	// path whose extension is neither .rmdp nor .rmdtoc.
	ErrUnsupportedExtension = errors.New("vfs: unsupported archive extension")

	// ErrFileHasNoChunks is returned by File.ReadFirstChunk for a file
	// with an empty chunk list.
	ErrFileHasNoChunks = errors.New("vfs: file has no chunks")
)
