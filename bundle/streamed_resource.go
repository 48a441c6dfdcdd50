// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bundle

import (
	"math"
	"sync"

	"github.com/northlight-forge/nlarc/internal/bytestream"
	"github.com/northlight-forge/nlarc/types"
)

const streamedResourceMagic = 0xBADF000D

// per-resource generic prefix: RID(4) + offset(4) + FileInfoMetadata(12).
const resourcePrefixSize = 20

// fixedMetadataSizes are the (v1, v2) pairs whose per-resource metadata
// is a statically-known fixed byte count, safe to treat as an opaque
// blob without modeling the underlying game-specific structure (out of
// scope per spec.md §1's Non-goals). Pairs whose metadata is inherently
// variable-length (e.g. containing a length-prefixed RID list) are
// treated the same as a genuinely unrecognized pair below: their size is
// recovered via the back-solved name-array scan instead of being parsed
// field-by-field.
var fixedMetadataSizes = map[[2]int]int{
	{4, 32}:   0,
	{7, 32}:   0,
	{10, 32}:  0,
	{4, 36}:   4,
	{10, 100}: 65,
}

type datapairKey struct {
	name   string
	v1, v2 int
}

var (
	datapairMu    sync.Mutex
	datapairCache = map[datapairKey]int{}
)

// FileInfoMetadata is the generic per-resource record every streamed
// resource carries regardless of its (v1, v2) pair (Metadata.FileInfoMetadata_v1
// in obrs_objects.py).
type FileInfoMetadata struct {
	FileSize    uint32
	FileDataCRC uint32
	Flags       uint32
}

func readFileInfoMetadata(s *bytestream.Stream) (FileInfoMetadata, error) {
	le := bytestream.LittleEndian
	fileSize, err := s.Uint(4, &le)
	if err != nil {
		return FileInfoMetadata{}, err
	}
	crc, err := s.Uint(4, &le)
	if err != nil {
		return FileInfoMetadata{}, err
	}
	flags, err := s.Uint(4, &le)
	if err != nil {
		return FileInfoMetadata{}, err
	}
	return FileInfoMetadata{FileSize: uint32(fileSize), FileDataCRC: uint32(crc), Flags: uint32(flags)}, nil
}

// StreamedResource is one entry of a StreamedResourceBin's resource
// table: an identifier, an offset into the bin's trailing name blob, the
// generic file-info record, and a type-specific metadata blob treated
// opaquely (see fixedMetadataSizes).
type StreamedResource struct {
	RID      types.RID
	Offset   uint32
	FileInfo FileInfoMetadata
	Metadata []byte
	Name     string
}

// StreamedResourceBin is a `.bin` blob beginning with the 0xBADF000D
// magic: a fixed resource table followed by a trailing
// length-prefixed null-terminated name blob, each resource's name
// recovered by indexing backward from the end of the blob using its
// own offset field (BinFileStreamedResource in binfile.py).
type StreamedResourceBin struct {
	Name      string
	Version   uint32
	V1, V2    uint32
	Resources []StreamedResource
}

// OpenStreamedResourceBin parses a streamed-resource bin.
func OpenStreamedResourceBin(name string, data []byte) (*StreamedResourceBin, error) {
	s := bytestream.New(data)
	le := bytestream.LittleEndian

	magic, err := s.Uint(4, &le)
	if err != nil {
		return nil, err
	}
	if uint32(magic) != streamedResourceMagic {
		return nil, ErrBadStreamedResourceMagic
	}
	version, err := s.Uint(4, &le)
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, ErrUnsupportedStreamedResourceVersion
	}
	v1, err := s.Uint(4, &le)
	if err != nil {
		return nil, err
	}
	v2, err := s.Uint(4, &le)
	if err != nil {
		return nil, err
	}
	numResources, err := s.Uint(4, &le)
	if err != nil {
		return nil, err
	}

	startResources := s.Tell()
	metadataSize, ok := fixedMetadataSizes[[2]int{int(v1), int(v2)}]
	if !ok {
		metadataSize, err = resolveMetadataSize(name, int(v1), int(v2), data, int(numResources), int(startResources))
		if err != nil {
			return nil, err
		}
	}

	resources := make([]StreamedResource, numResources)
	for i := range resources {
		raw, err := s.Read(4)
		if err != nil {
			return nil, err
		}
		offset, err := s.Uint(4, &le)
		if err != nil {
			return nil, err
		}
		info, err := readFileInfoMetadata(s)
		if err != nil {
			return nil, err
		}
		var meta []byte
		if metadataSize > 0 {
			meta, err = s.Read(metadataSize)
			if err != nil {
				return nil, err
			}
		}
		resources[i] = StreamedResource{RID: types.NewRID(raw), Offset: uint32(offset), FileInfo: info, Metadata: meta}
	}

	nameBlobSize, err := s.Uint(4, &le)
	if err != nil {
		return nil, err
	}
	total := int64(len(data))
	for i := range resources {
		pos := total - int64(nameBlobSize) + int64(resources[i].Offset)
		n, err := s.NullTerminatedStringAt(pos, 0)
		if err != nil {
			return nil, err
		}
		resources[i].Name = n
	}

	return &StreamedResourceBin{Name: name, Version: uint32(version), V1: uint32(v1), V2: uint32(v2), Resources: resources}, nil
}

// resolveMetadataSize recovers, for an unrecognized (v1, v2) pair, the
// fixed per-resource metadata byte count by scanning the file tail for
// its null-terminated name array and back-solving from the declared
// resource count. The result is cached process-wide per (name, v1, v2),
// mirroring BinFileStreamedResource.datapairs — a bounded, write-once
// cache never mutated concurrently because a single bin is always
// parsed start-to-finish by one caller (spec.md §5's single-threaded
// per-reader scheduling model).
func resolveMetadataSize(name string, v1, v2 int, data []byte, numResources, startResources int) (int, error) {
	key := datapairKey{name: name, v1: v1, v2: v2}
	datapairMu.Lock()
	if size, ok := datapairCache[key]; ok {
		datapairMu.Unlock()
		return size, nil
	}
	datapairMu.Unlock()

	if numResources == 0 {
		return 0, nil
	}
	nameRegionSize, err := bytestream.FindNameArrayStart(data, numResources)
	if err != nil {
		return 0, ErrNameArrayRecoveryFailed
	}
	raw := float64(len(data)-nameRegionSize-4-startResources)/float64(numResources) - resourcePrefixSize
	if raw != math.Trunc(raw) || raw < 0 {
		return 0, ErrNameArrayRecoveryFailed
	}
	size := int(raw)

	datapairMu.Lock()
	datapairCache[key] = size
	datapairMu.Unlock()
	return size, nil
}
