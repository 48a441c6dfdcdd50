// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vfs

import (
	"path/filepath"
	"strings"

	"github.com/northlight-forge/nlarc/archive"
	"github.com/northlight-forge/nlarc/instance"
	"github.com/northlight-forge/nlarc/log"
)

// ProgressFunc is an optional callback an Admin reports named stages
// through, start=true on entry and start=false on completion. Grounded
// on readers.py's TimerLog context manager wrapped around TOC
// decompression and every cached-table build.
type ProgressFunc func(stage string, start bool)

// Admin is the entry point over one archive path (.rmdp or .rmdtoc):
// it lazily opens the matching reader generation and lazily builds the
// Tree/Data/Meta views over it, caching each on first use.
type Admin struct {
	Path     string
	Instance instance.Config
	Progress ProgressFunc

	logger log.Logger
	log    *log.Helper

	readerV1 *archive.ReaderV1
	readerV2 *archive.ReaderV2

	tree *TreeAdmin
	data *DataAdmin
	meta *MetaAdmin
}

// NewAdmin builds an Admin over path without opening it; the reader and
// the Tree/Data/Meta views are built lazily on first access, mirroring
// Admin.is_set / Admin.reader()'s lazy-open semantics.
func NewAdmin(inst instance.Config, path string, logger log.Logger, progress ProgressFunc) *Admin {
	return &Admin{Path: path, Instance: inst, Progress: progress, logger: logger, log: log.NewHelper(logger)}
}

// Name is the archive's file stem, used to namespace its export tree.
func (a *Admin) Name() string {
	return strings.TrimSuffix(filepath.Base(a.Path), filepath.Ext(a.Path))
}

// ExportRoot is the directory export_path entries are rooted under:
// {instance.ExportDir}/{instance.Key}/{archive_stem}.
func (a *Admin) ExportRoot() string {
	return filepath.Join(a.Instance.ExportDir(), a.Instance.Key(), a.Name())
}

// IsOpen reports whether a reader has already been opened, mirroring
// Admin.is_set.
func (a *Admin) IsOpen() bool {
	return a.readerV1 != nil || a.readerV2 != nil
}

func (a *Admin) report(stage string, start bool) {
	if a.Progress != nil {
		a.Progress(stage, start)
	}
}

// openReader dispatches on the archive's extension, mirroring Reader.factory.
func (a *Admin) openReader() error {
	if a.IsOpen() {
		return nil
	}
	switch filepath.Ext(a.Path) {
	case ".rmdp":
		a.report("open reader v1", true)
		r, err := archive.OpenV1(a.Instance, a.Path, a.logger)
		a.report("open reader v1", false)
		if err != nil {
			return err
		}
		a.readerV1 = r
		return nil
	case ".rmdtoc":
		a.report("open reader v2", true)
		r, err := archive.OpenV2(a.Instance, a.Path, a.logger)
		a.report("open reader v2", false)
		if err != nil {
			return err
		}
		a.readerV2 = r
		return nil
	default:
		return ErrUnsupportedExtension
	}
}

// Tree returns the folder/file index, building it on first call.
func (a *Admin) Tree() (*TreeAdmin, error) {
	if a.tree != nil {
		return a.tree, nil
	}
	if err := a.openReader(); err != nil {
		return nil, err
	}
	a.report("build tree", true)
	defer a.report("build tree", false)
	t, err := newTreeAdmin(a)
	if err != nil {
		return nil, err
	}
	a.tree = t
	return a.tree, nil
}

// Data returns the chunk/archive index, building it on first call.
func (a *Admin) Data() (*DataAdmin, error) {
	if a.data != nil {
		return a.data, nil
	}
	if err := a.openReader(); err != nil {
		return nil, err
	}
	a.report("build data", true)
	defer a.report("build data", false)
	d, err := newDataAdmin(a)
	if err != nil {
		return nil, err
	}
	a.data = d
	return a.data, nil
}

// Meta returns the metadata view (a .packmeta sibling for v1, or the
// mdty name list for v2), building it on first call.
func (a *Admin) Meta() (*MetaAdmin, error) {
	if a.meta != nil {
		return a.meta, nil
	}
	if err := a.openReader(); err != nil {
		return nil, err
	}
	m, err := newMetaAdmin(a)
	if err != nil {
		return nil, err
	}
	a.meta = m
	return a.meta, nil
}

// Clear drops every cached reader/view, mirroring Admin.clear(); the
// next Tree/Data/Meta/reader access rebuilds everything from scratch.
func (a *Admin) Clear() {
	a.readerV1, a.readerV2 = nil, nil
	a.tree, a.data, a.meta = nil, nil, nil
}

// prefix returns the archive's filesystem prefix string, shared by both
// reader generations.
func (a *Admin) prefix() string {
	if a.readerV1 != nil {
		return a.readerV1.Prefix
	}
	return "" // v2 .rmdtoc archives carry no equivalent prefix field
}
