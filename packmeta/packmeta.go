// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package packmeta

import (
	"encoding/binary"
	"hash/crc32"
	"strings"

	"github.com/northlight-forge/nlarc/datastream"
	"github.com/northlight-forge/nlarc/internal/bytestream"
	"github.com/northlight-forge/nlarc/log"
	"github.com/northlight-forge/nlarc/types"
)

// predefinedTypeNames is the fixed metadata-type name list minor version
// 7 uses in place of self-declared names (packmeta_7_nameindex in
// packmeta.py). 1.8/1.9 declare everything from the file itself.
var predefinedTypeNames = []string{
	"content::FileInfoMetadata",
	"content::ResourceMetadata",
	"content::VersionsMetadata",
	"content::TextureMetadata",
	"content::MeshMetadata",
	"content::FoliageMeshMetadata",
	"content::HavokAnimationMetadata",
	"content::ParticleSystemMetadata",
}

// TypeDef is one metadata-type definition: the identity of the type and
// the element count of its tree[i] array (PackMetaType).
type TypeDef struct {
	Index int
	Hash  uint32
	Name  string
	Count int
}

// SubEntry links a file to one tree-selected metadata container
// (FileMetadataEntry_v1/_v2's nested Metadata class).
type SubEntry struct {
	MetaIndex uint32
	FileIndex uint32
}

// FileMetadataEntry is the per-file record parsed from the tail of the
// file: an offset key (matched against the name/offset table) and the
// list of tree selections that belong to it. v1 and v2 share this shape;
// they differ only in the type hash the envelope carries.
type FileMetadataEntry struct {
	Offset   uint32
	SubItems []SubEntry
}

// PackMetaFile is one assembled record: a file's declared offset and
// name, its resource identifier if the RID table carries one for that
// offset, and the datastream containers selected for it out of the
// metadata-type trees (PackMetaFile).
type PackMetaFile struct {
	Offset uint32
	Name   string
	RID    *types.RID
	Meta   []datastream.Container
}

// File is a fully parsed `.packmeta` envelope.
type File struct {
	Name         string
	MinorVersion int

	FileCount    int
	TreeCount    int
	ElementCount int
	NamesSize    int

	TypeDefs []TypeDef
	Files    []PackMetaFile

	log *log.Helper
}

// Open parses a packmeta blob. minorVersion selects the predefined
// type-name list (7) versus self-declared type defs (anything else,
// typically 8 or 9); packmeta.py treats 1.2/1.3 as lacking this metadata
// system entirely, so Open does not accept those.
func Open(name string, data []byte, minorVersion int, logger log.Logger) (*File, error) {
	if minorVersion < 7 {
		return nil, ErrUnknownMinorVersion
	}
	helper := log.NewHelper(logger)
	helper.Infof("packmeta: parsing %q (minor version %d, %d bytes)", name, minorVersion, len(data))

	s := bytestream.New(data)

	fileCount, err := s.U32()
	if err != nil {
		return nil, err
	}
	treeCount, err := s.U32()
	if err != nil {
		return nil, err
	}
	elementCount, err := s.U32()
	if err != nil {
		return nil, err
	}
	namesSize, err := s.U32()
	if err != nil {
		return nil, err
	}

	names := make([]string, fileCount)
	for i := range names {
		n, err := s.NullTerminatedString(0)
		if err != nil {
			return nil, err
		}
		names[i] = n
	}
	if s.Tell() != int64(namesSize)+16 {
		helper.Warnf("packmeta: name table ended at %d, expected %d (names_size=%d)", s.Tell(), int64(namesSize)+16, namesSize)
	}

	offsets := make([]uint32, fileCount)
	for i := range offsets {
		o, err := s.U32()
		if err != nil {
			return nil, err
		}
		offsets[i] = o
	}

	// The RID table is NOT interleaved (offset, RID) pairs on disk
	// despite how it reads in isolation: packmeta.py builds the RID list
	// comprehension first (consuming ridCount RIDs back-to-back), then
	// the enclosing dict comprehension reads ridCount offsets
	// afterward, zipping the two lists by position. See DESIGN.md.
	ridCount, err := s.U32()
	if err != nil {
		return nil, err
	}
	ridLen := 8
	if minorVersion == 7 {
		ridLen = 4
	}
	rids := make([]types.RID, ridCount)
	for i := range rids {
		r, err := types.ReadRID(s, ridLen)
		if err != nil {
			return nil, err
		}
		rids[i] = r
	}
	ridByOffset := make(map[uint32]types.RID, ridCount)
	for i := uint32(0); i < ridCount; i++ {
		off, err := s.U32()
		if err != nil {
			return nil, err
		}
		ridByOffset[off] = rids[i]
	}

	typeDefCount, err := s.U32()
	if err != nil {
		return nil, err
	}
	typeDefs := make([]TypeDef, typeDefCount)
	for i := range typeDefs {
		td, err := readTypeDef(s, i, minorVersion)
		if err != nil {
			return nil, err
		}
		typeDefs[i] = td
	}

	tree := make([][]datastream.Container, len(typeDefs))
	for i, td := range typeDefs {
		tree[i] = make([]datastream.Container, td.Count)
		for j := range tree[i] {
			c, err := datastream.ReadContainer(s)
			if err != nil {
				return nil, err
			}
			tree[i][j] = c
		}
	}

	fmeByOffset := make(map[uint32]FileMetadataEntry, fileCount)
	for i := uint32(0); i < fileCount; i++ {
		c, err := datastream.ReadContainer(s)
		if err != nil {
			return nil, err
		}
		fme, err := decodeFileMetadataEntry(c)
		if err != nil {
			return nil, err
		}
		fmeByOffset[fme.Offset] = fme
	}

	files := make([]PackMetaFile, fileCount)
	for i, off := range offsets {
		var meta []datastream.Container
		if fme, ok := fmeByOffset[off]; ok {
			meta = make([]datastream.Container, 0, len(fme.SubItems))
			for _, sub := range fme.SubItems {
				if int(sub.MetaIndex) >= len(tree) || int(sub.FileIndex) >= len(tree[sub.MetaIndex]) {
					helper.Warnf("packmeta: %q references out-of-range tree[%d][%d]", names[i], sub.MetaIndex, sub.FileIndex)
					continue
				}
				meta = append(meta, tree[sub.MetaIndex][sub.FileIndex])
			}
		}
		var ridPtr *types.RID
		if r, ok := ridByOffset[off]; ok {
			rr := r
			ridPtr = &rr
		}
		files[i] = PackMetaFile{Offset: off, Name: names[i], RID: ridPtr, Meta: meta}
	}

	return &File{
		Name:         name,
		MinorVersion: minorVersion,
		FileCount:    int(fileCount),
		TreeCount:    int(treeCount),
		ElementCount: int(elementCount),
		NamesSize:    int(namesSize),
		TypeDefs:     typeDefs,
		Files:        files,
		log:          helper,
	}, nil
}

func readTypeDef(s *bytestream.Stream, index int, minorVersion int) (TypeDef, error) {
	if minorVersion == 7 {
		if index >= len(predefinedTypeNames) {
			return TypeDef{}, ErrPredefinedIndexOutOfRange
		}
		name := predefinedTypeNames[index]
		hash := crc32.ChecksumIEEE([]byte(strings.ToLower(name)))
		count, err := s.U32()
		if err != nil {
			return TypeDef{}, err
		}
		return TypeDef{Index: index, Hash: hash, Name: name, Count: int(count)}, nil
	}

	raw, err := s.Read(4)
	if err != nil {
		return TypeDef{}, err
	}
	hash := binary.BigEndian.Uint32(raw)
	name, err := s.LengthPrefixedString()
	if err != nil {
		return TypeDef{}, err
	}
	count, err := s.U32()
	if err != nil {
		return TypeDef{}, err
	}
	return TypeDef{Index: index, Hash: hash, Name: name, Count: int(count)}, nil
}

// decodeFileMetadataEntry reads a FileMetadataEntry container's payload:
// an offset key and a length-prefixed list of nested Metadata containers
// (FileMetadataEntry_v1/_v2.subitems).
func decodeFileMetadataEntry(c datastream.Container) (FileMetadataEntry, error) {
	s := bytestream.New(c.Payload)
	b := datastream.NewBinder(s)
	offset := b.Uint("ofst", 4, nil)
	subs := b.IterDSC("subitems", nil)
	if err := b.Err(); err != nil {
		return FileMetadataEntry{}, err
	}
	out := make([]SubEntry, len(subs))
	for i, sc := range subs {
		se, err := decodeMetadataSub(sc)
		if err != nil {
			return FileMetadataEntry{}, err
		}
		out[i] = se
	}
	return FileMetadataEntry{Offset: uint32(offset), SubItems: out}, nil
}

// decodeMetadataSub reads one nested Metadata container's payload:
// meta_index and file_index (FileMetadataEntry_v1/_v2.Metadata).
func decodeMetadataSub(c datastream.Container) (SubEntry, error) {
	s := bytestream.New(c.Payload)
	b := datastream.NewBinder(s)
	metaIndex := b.Uint("meta_index", 4, nil)
	fileIndex := b.Uint("file_index", 4, nil)
	if err := b.Err(); err != nil {
		return SubEntry{}, err
	}
	return SubEntry{MetaIndex: uint32(metaIndex), FileIndex: uint32(fileIndex)}, nil
}
