// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vfs

import (
	"io"
	"os"
)

// MetaAdmin is the metadata view over one archive: for a v1 reader, a
// path to a sibling .packmeta file if one exists next to the .rmdp
// (see packmeta.Open for the structured parse); for a v2 reader, the
// mdty name list only. Grounded on engine.py's MetaAdmin dataclass.
type MetaAdmin struct {
	Admin *Admin

	Path          string         // non-empty only when a v1 .packmeta sibling exists
	MetadataTypes map[int]string // non-nil only for v2
}

// Get slices the v1 .packmeta sibling at an absolute byte offset. It
// returns nil, nil when there is no sibling (v2 archives, or a v1
// archive with none present), mirroring MetaAdmin.get's `if self.path
// is None: return b''`.
func (m *MetaAdmin) Get(offset, size int64) ([]byte, error) {
	if m.Path == "" {
		return nil, nil
	}
	f, err := os.Open(m.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func newMetaAdmin(a *Admin) (*MetaAdmin, error) {
	switch {
	case a.readerV1 != nil:
		m := &MetaAdmin{Admin: a}
		if a.readerV1.HasPackMeta {
			m.Path = a.readerV1.PathMeta
		}
		return m, nil
	case a.readerV2 != nil:
		return &MetaAdmin{Admin: a, MetadataTypes: a.readerV2.BuildNameDict("mdty")}, nil
	default:
		return nil, ErrUnsupportedExtension
	}
}
