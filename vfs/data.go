// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vfs

import (
	"os"
	"path/filepath"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/northlight-forge/nlarc/archive"
	"github.com/northlight-forge/nlarc/internal/bytestream"
)

// Chunk is one block of a file's bytes: a byte range in one sibling
// archive, optionally LZ4-compressed. Grounded on engine.py's Chunk
// dataclass.
type Chunk struct {
	Admin            *Admin
	Index            int
	Compressed       bool
	ArchiveIdx       int
	Offset           int64
	SizeDecompressed int
	SizeCompressed   int
}

// Size is the chunk's footprint in its backing archive: the compressed
// size when compressed, otherwise the plain size.
func (c *Chunk) Size() int {
	if c.Compressed {
		return c.SizeCompressed
	}
	return c.SizeDecompressed
}

// Archive resolves the archive this chunk's bytes live in.
func (c *Chunk) Archive() (*Archive, error) {
	data, err := c.Admin.Data()
	if err != nil {
		return nil, err
	}
	return data.Archives[c.ArchiveIdx], nil
}

// Read returns this chunk's bytes: the raw range if uncompressed, or the
// LZ4 block decompressed to exactly SizeDecompressed bytes. The backing
// archive is memory-mapped rather than read whole, since a single
// archive file (e.g. an .rmdp sibling or a .rmdtoc's shard) can be
// arbitrarily large while any one chunk only needs a small slice of it
// (saferwall-pe's file.go mmaps its whole input for the same reason:
// random-access reads into a file far larger than any one read).
func (c *Chunk) Read() ([]byte, error) {
	arch, err := c.Archive()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(arch.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer data.Unmap()
	s := bytestream.New(data)
	return s.ReadLZ4Block(c.SizeCompressed, c.SizeDecompressed, c.Compressed, c.Offset)
}

// Archive is one sibling data file referenced by one or more Chunks.
// Grounded on engine.py's Archive dataclass.
type Archive struct {
	Admin *Admin
	Index int
	Path  string
	Hash  []byte // nil for v1 (the sole archive is the .rmdp itself)
}

// Size stats the archive file.
func (a *Archive) Size() (int64, error) {
	fi, err := os.Stat(a.Path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// DataAdmin is the chunk/archive index over one archive. Grounded on
// engine.py's DataAdmin.__init__.
type DataAdmin struct {
	Admin    *Admin
	Chunks   map[int]*Chunk
	Archives map[int]*Archive
}

func newDataAdmin(a *Admin) (*DataAdmin, error) {
	switch {
	case a.readerV1 != nil:
		return newDataAdminV1(a, a.readerV1), nil
	case a.readerV2 != nil:
		return newDataAdminV2(a, a.readerV2), nil
	default:
		return nil, ErrUnsupportedExtension
	}
}

// newDataAdminV1 gives every v1 file a single uncompressed chunk at its
// own index into the lone archive (the .rmdp file itself).
func newDataAdminV1(a *Admin, r *archive.ReaderV1) *DataAdmin {
	chunks := make(map[int]*Chunk, len(r.MainFiles))
	for i, f := range r.MainFiles {
		chunks[i] = &Chunk{
			Admin: a, Index: i, Compressed: false, ArchiveIdx: 0,
			Offset: int64(f.Offset), SizeDecompressed: int(f.Size), SizeCompressed: 0,
		}
	}
	archives := map[int]*Archive{0: {Admin: a, Index: 0, Path: r.Path}}
	return &DataAdmin{Admin: a, Chunks: chunks, Archives: archives}
}

// newDataAdminV2 builds the real per-file data chunk table from the
// TOC's table.Chnk region (ReaderV2.DataChunks), and resolves every
// archive's sibling path via the arch name dictionary.
func newDataAdminV2(a *Admin, r *archive.ReaderV2) *DataAdmin {
	chunks := make(map[int]*Chunk, len(r.DataChunks))
	for i, c := range r.DataChunks {
		chunks[i] = &Chunk{
			Admin: a, Index: i, Compressed: c.LZ4, ArchiveIdx: int(c.ArchiveIdx),
			Offset: c.Offset, SizeDecompressed: c.Decompressed, SizeCompressed: c.Compressed,
		}
	}
	archNames := r.BuildNameDict("arch")
	dir := filepath.Dir(r.Path)
	archives := make(map[int]*Archive, len(r.Archives))
	for i, ar := range r.Archives {
		archives[i] = &Archive{Admin: a, Index: i, Path: filepath.Join(dir, archNames[i]), Hash: ar.Hash}
	}
	return &DataAdmin{Admin: a, Chunks: chunks, Archives: archives}
}
