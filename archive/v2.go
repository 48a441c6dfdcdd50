// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package archive

import (
	"os"
	"path/filepath"
	"strings"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/northlight-forge/nlarc/instance"
	"github.com/northlight-forge/nlarc/internal/bytestream"
	"github.com/northlight-forge/nlarc/log"
	"github.com/northlight-forge/nlarc/types"
)

// tocTable is the 10-slot directory header of a .rmdtoc file (spec.md
// §4.4; grounded on marshall.py's NPD.RMDTOC_Table): magic "COTR"
// (reversed "R(emedy)TOC"), a version int, and 10 OfSz slots into the
// decompressed TOC blob.
type tocTable struct {
	Magic   string
	Version int
	Tabl    types.OfSz // the chunk record table itself, within the RAW .rmdtoc file
	Arch    types.OfSz
	Fldr    types.OfSz
	File    types.OfSz
	Stng    types.OfSz
	Mdty    types.OfSz
	Mtdt    types.OfSz
	Unk0    types.OfSz
	Unk1    types.OfSz
	Chnk    types.OfSz
}

const (
	tocMagic             = "COTR"
	rmdtocFolderItemSize = 28 // marshall.py NPD.RMDTOC_D.dtype.itemsize
	rmdtocFileItemSize   = 32 // marshall.py NPD.RMDTOC_F.dtype.itemsize
	rmdtocArchItemSize   = 16 // marshall.py NPD.RMDTOC_Archive.dtype.itemsize
	rmdtocChunkItemSize  = 16 // marshall.py NPD.RMDTOC_Chunk.dtype.itemsize
	rmdtocMdtyItemSize   = 8  // an OfSz entry
)

func readTOCTable(s *bytestream.Stream) (tocTable, error) {
	magic, err := s.FixedString(4)
	if err != nil {
		return tocTable{}, err
	}
	if magic != tocMagic {
		return tocTable{}, ErrBadMagic
	}
	version, err := s.U32()
	if err != nil {
		return tocTable{}, err
	}
	var t tocTable
	t.Magic, t.Version = magic, int(version)
	slots := []*types.OfSz{&t.Tabl, &t.Arch, &t.Fldr, &t.File, &t.Stng, &t.Mdty, &t.Mtdt, &t.Unk0, &t.Unk1, &t.Chnk}
	for _, slot := range slots {
		v, err := types.ReadOfSz(s)
		if err != nil {
			return tocTable{}, err
		}
		*slot = v
	}
	return t, nil
}

// dcpSize is the predicted size of the decompressed TOC blob, rounded up
// to a multiple of 8 (marshall.py's RMDTOC_Table.dcp_size).
func (t tocTable) dcpSize() int64 {
	total := int64(t.Arch.Size)*rmdtocArchItemSize +
		int64(t.Fldr.Size)*rmdtocFolderItemSize +
		int64(t.File.Size)*rmdtocFileItemSize +
		int64(t.Mdty.Size)*rmdtocMdtyItemSize +
		int64(t.Chnk.Size) + int64(t.Stng.Size) + int64(t.Mtdt.Size)
	return ((total + 7) / 8) * 8
}

// ChunkRecord is one 16-byte entry from the raw .rmdtoc chunk table
// (table.Tabl), describing one LZ4 (or passthrough) block of the
// decompressed TOC blob.
type ChunkRecord struct {
	LZ4          bool
	ArchiveIdx   uint16
	Offset       int64 // 40-bit little-endian offset into the raw .rmdtoc file
	Decompressed int
	Compressed   int
}

func readChunkRecords(s *bytestream.Stream, ofsz types.OfSz) ([]ChunkRecord, error) {
	if _, err := s.Seek(int64(ofsz.Offset), bytestream.SeekStart); err != nil {
		return nil, err
	}
	count := int(ofsz.Size) / rmdtocChunkItemSize
	out := make([]ChunkRecord, 0, count)
	le := bytestream.LittleEndian
	for i := 0; i < count; i++ {
		lz4, err := s.Bool()
		if err != nil {
			return nil, err
		}
		archIdx, err := s.Uint(2, &le)
		if err != nil {
			return nil, err
		}
		offsetBytes, err := s.Read(5)
		if err != nil {
			return nil, err
		}
		var offset int64
		for j := len(offsetBytes) - 1; j >= 0; j-- {
			offset = (offset << 8) | int64(offsetBytes[j])
		}
		decompressed, err := s.Uint(4, &le)
		if err != nil {
			return nil, err
		}
		compressed, err := s.Uint(4, &le)
		if err != nil {
			return nil, err
		}
		out = append(out, ChunkRecord{
			LZ4: lz4, ArchiveIdx: uint16(archIdx), Offset: offset,
			Decompressed: int(decompressed), Compressed: int(compressed),
		})
	}
	return out, nil
}

// FolderRecordV2 is one decoded entry from the decompressed TOC's fldr
// table (marshall.py NPD.RMDTOC_D).
type FolderRecordV2 struct {
	Index      int
	ParentIdx  uint32
	Name       types.OfSz
	NextID     uint32
	NextCount  uint32
	FileIndex  uint32
	FileCount  uint32
}

// FileRecordV2 is one decoded entry from the decompressed TOC's file
// table (marshall.py NPD.RMDTOC_F).
type FileRecordV2 struct {
	Index     int
	ParentIdx uint32
	Name      types.OfSz
	Chunks    types.OfSz
	Metadata  types.OfSz
	Size      uint32
}

// ArchiveRecord is one decoded entry from the decompressed TOC's arch
// table (marshall.py NPD.RMDTOC_Archive): a path into the string blob
// and a content hash.
type ArchiveRecord struct {
	Index int
	Path  types.OfSz
	Hash  []byte
}

// ReaderV2 decodes a v2.x .rmdtoc archive: a COTR-headed table of
// offset/size slots pointing into an LZ4-chunked, self-decompressing
// TOC blob. Grounded on readers.py's ReaderNLEv20.
type ReaderV2 struct {
	Instance instance.Config
	Path     string

	Table tocTable

	DecompressedPath string

	Folders   []FolderRecordV2
	Files     []FileRecordV2
	Archives  []ArchiveRecord
	Chunks    []ChunkRecord // TOC-bootstrap chunk table (table.Tabl), used only to decompress the blob
	DataChunks []ChunkRecord // per-file data chunk table (table.Chnk), indexed by FileRecordV2.Chunks
	Metadata  []types.OfSz
	StringBlob []byte
	MetaBlob  []byte

	Anomalies []string

	log *log.Helper
}

// OpenV2 opens path (expected extension .rmdtoc), parses its header
// table, and ensures a decompressed TOC blob exists in the instance
// cache directory, rebuilding it from the LZ4 chunk table if missing or
// size-mismatched against the predicted size.
func OpenV2(inst instance.Config, path string, logger log.Logger) (*ReaderV2, error) {
	if filepath.Ext(path) != ".rmdtoc" {
		return nil, ErrUnsupportedExtension
	}
	// The .rmdtoc itself is memory-mapped rather than read whole: a TOC
	// shard can be large, and rebuilding the decompressed cache only
	// touches it one LZ4 block at a time via ReadLZ4Block's random-offset
	// reads (the same reason saferwall-pe's file.go mmaps its input).
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	raw, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer raw.Unmap()
	headerStream := bytestream.New(raw)
	table, err := readTOCTable(headerStream)
	if err != nil {
		return nil, err
	}

	r := &ReaderV2{Instance: inst, Path: path, Table: table, log: log.NewHelper(logger)}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	cacheDir := filepath.Join(inst.CacheDir(), inst.Key(), stem)
	r.DecompressedPath = filepath.Join(cacheDir, stem+".rmdtoc_decompressed")

	rebuild := true
	if fi, err := os.Stat(r.DecompressedPath); err == nil {
		if fi.Size() == table.dcpSize() {
			rebuild = false
		} else {
			r.Anomalies = append(r.Anomalies, ErrTOCSizeMismatch.Error())
		}
	}
	if rebuild {
		r.Anomalies = append(r.Anomalies, AnoTOCCacheRebuilt)
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return nil, err
		}
		chunks, err := readChunkRecords(headerStream, table.Tabl)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, table.dcpSize())
		rawStream := bytestream.New(raw)
		for _, c := range chunks {
			block, err := rawStream.ReadLZ4Block(c.Compressed, c.Decompressed, c.LZ4, c.Offset)
			if err != nil && c.LZ4 {
				return nil, err
			}
			out = append(out, block...)
		}
		if err := os.WriteFile(r.DecompressedPath, out, 0o644); err != nil {
			return nil, err
		}
		r.Chunks = chunks
	}

	dcp, err := os.ReadFile(r.DecompressedPath)
	if err != nil {
		return nil, err
	}
	if err := r.parseDecompressedTables(dcp); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ReaderV2) parseDecompressedTables(dcp []byte) error {
	le := bytestream.LittleEndian

	parseFolders := func() ([]FolderRecordV2, error) {
		s := bytestream.New(dcp)
		if _, err := s.Seek(int64(r.Table.Fldr.Offset), bytestream.SeekStart); err != nil {
			return nil, err
		}
		out := make([]FolderRecordV2, 0, r.Table.Fldr.Size)
		for i := 0; i < int(r.Table.Fldr.Size); i++ {
			parentIdx, err := s.Uint(4, &le)
			if err != nil {
				return nil, err
			}
			nextID, err := s.Uint(4, &le)
			if err != nil {
				return nil, err
			}
			nextCount, err := s.Uint(4, &le)
			if err != nil {
				return nil, err
			}
			fileIndex, err := s.Uint(4, &le)
			if err != nil {
				return nil, err
			}
			fileCount, err := s.Uint(4, &le)
			if err != nil {
				return nil, err
			}
			name, err := types.ReadOfSz(s)
			if err != nil {
				return nil, err
			}
			out = append(out, FolderRecordV2{
				Index: i, ParentIdx: uint32(parentIdx), NextID: uint32(nextID),
				NextCount: uint32(nextCount), FileIndex: uint32(fileIndex),
				FileCount: uint32(fileCount), Name: name,
			})
		}
		return out, nil
	}

	parseFiles := func() ([]FileRecordV2, error) {
		s := bytestream.New(dcp)
		if _, err := s.Seek(int64(r.Table.File.Offset), bytestream.SeekStart); err != nil {
			return nil, err
		}
		out := make([]FileRecordV2, 0, r.Table.File.Size)
		for i := 0; i < int(r.Table.File.Size); i++ {
			chunks, err := types.ReadOfSz(s)
			if err != nil {
				return nil, err
			}
			parentIdx, err := s.Uint(4, &le)
			if err != nil {
				return nil, err
			}
			name, err := types.ReadOfSz(s)
			if err != nil {
				return nil, err
			}
			size, err := s.Uint(4, &le)
			if err != nil {
				return nil, err
			}
			meta, err := types.ReadOfSz(s)
			if err != nil {
				return nil, err
			}
			out = append(out, FileRecordV2{
				Index: i, Chunks: chunks, ParentIdx: uint32(parentIdx),
				Name: name, Size: uint32(size), Metadata: meta,
			})
		}
		return out, nil
	}

	parseArchives := func() ([]ArchiveRecord, error) {
		s := bytestream.New(dcp)
		if _, err := s.Seek(int64(r.Table.Arch.Offset), bytestream.SeekStart); err != nil {
			return nil, err
		}
		out := make([]ArchiveRecord, 0, r.Table.Arch.Size)
		for i := 0; i < int(r.Table.Arch.Size); i++ {
			path, err := types.ReadOfSz(s)
			if err != nil {
				return nil, err
			}
			hash, err := s.Read(8)
			if err != nil {
				return nil, err
			}
			out = append(out, ArchiveRecord{Index: i, Path: path, Hash: hash})
		}
		return out, nil
	}

	parseMdty := func() ([]types.OfSz, error) {
		s := bytestream.New(dcp)
		if _, err := s.Seek(int64(r.Table.Mdty.Offset), bytestream.SeekStart); err != nil {
			return nil, err
		}
		out := make([]types.OfSz, 0, r.Table.Mdty.Size)
		for i := 0; i < int(r.Table.Mdty.Size); i++ {
			v, err := types.ReadOfSz(s)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	var err error
	if r.Folders, err = parseFolders(); err != nil {
		return err
	}
	if r.Files, err = parseFiles(); err != nil {
		return err
	}
	if r.Archives, err = parseArchives(); err != nil {
		return err
	}
	if r.Metadata, err = parseMdty(); err != nil {
		return err
	}

	s := bytestream.New(dcp)
	if r.StringBlob, err = s.ReadAt(int64(r.Table.Stng.Offset), int(r.Table.Stng.Size)); err != nil {
		return err
	}
	if r.MetaBlob, err = s.ReadAt(int64(r.Table.Mtdt.Offset), int(r.Table.Mtdt.Size)); err != nil {
		return err
	}

	if r.DataChunks, err = readChunkRecords(bytestream.New(dcp), r.Table.Chnk); err != nil {
		return err
	}
	return nil
}

// StringAt resolves an OfSz into the string blob (r.StringBlob), the way
// build_strdict_option resolves fldr/file/arch/mdty names.
func (r *ReaderV2) StringAt(o types.OfSz) string {
	if int(o.Offset)+int(o.Size) > len(r.StringBlob) {
		return ""
	}
	return string(r.StringBlob[o.Offset : o.Offset+o.Size])
}

// BuildNameDict resolves every entry's name in one table ("fldr", "file",
// "arch", or "mdty"), mirroring ReaderNLEv20.build_strdict_option.
func (r *ReaderV2) BuildNameDict(mode string) map[int]string {
	out := map[int]string{}
	switch mode {
	case "fldr":
		for _, d := range r.Folders {
			out[d.Index] = r.StringAt(d.Name)
		}
	case "file":
		for _, f := range r.Files {
			out[f.Index] = r.StringAt(f.Name)
		}
	case "arch":
		for _, a := range r.Archives {
			out[a.Index] = r.StringAt(a.Path)
		}
	case "mdty":
		for i, o := range r.Metadata {
			out[i] = r.StringAt(o)
		}
	}
	return out
}
