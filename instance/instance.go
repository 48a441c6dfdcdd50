// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package instance defines the InstanceConfig collaborator interface the
// core accepts instead of owning any configuration persistence (spec.md
// §1 Non-goals: "Configuration persistence ... is out of scope"; the core
// only consumes root path, cache directory, and export directory).
package instance

// Config describes one game installation root. The core never mutates a
// Config; it is created once by the host application (e.g. from a TOML
// file, per cmd/nlarc) and handed to archive.OpenV1/OpenV2/vfs.NewAdmin.
type Config interface {
	// Key is a short, filesystem-safe identifier used to namespace the
	// cache and export directories.
	Key() string

	// DisplayName is a human-readable label, not used for any path or
	// cache-key derivation.
	DisplayName() string

	// VersionTag is a free-form version label (e.g. a game patch id).
	VersionTag() string

	// RootPath is the filesystem path to the installation root that
	// contains the .rmdp/.rmdtoc archive entries.
	RootPath() string

	// CacheDir is the root of this core's on-disk cache tree; the v2
	// reader persists its decompressed TOC under
	// {CacheDir}/{Key}/{archive_stem}/. Name dictionaries are not
	// persisted there.
	CacheDir() string

	// ExportDir is the root export tree; assembled file bytes are
	// written under {ExportDir}/{Key}/{archive_stem}/{sanitized path}.
	ExportDir() string
}

// Static is a minimal Config implementation for tests and simple callers
// that already know all four values (e.g. the CLI's TOML-backed loader).
type Static struct {
	KeyValue     string
	Name         string
	Version      string
	Root         string
	Cache        string
	Export       string
}

func (s Static) Key() string         { return s.KeyValue }
func (s Static) DisplayName() string { return s.Name }
func (s Static) VersionTag() string  { return s.Version }
func (s Static) RootPath() string    { return s.Root }
func (s Static) CacheDir() string    { return s.Cache }
func (s Static) ExportDir() string   { return s.Export }
