// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vfs

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/northlight-forge/nlarc/instance"
	"github.com/northlight-forge/nlarc/log"
)

func put32(buf *[]byte, v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	*buf = append(*buf, b...)
}

func put64(buf *[]byte, v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	*buf = append(*buf, b...)
}

// buildV1BinMain assembles a minimal v1 .bin sidecar for minor version 7
// with one main folder ("root") holding one main file ("file.txt").
func buildV1BinMain(t *testing.T) []byte {
	t.Helper()
	var buf []byte

	buf = append(buf, 0x00) // endian selector: little
	put32(&buf, 7)          // v_minor
	put32(&buf, 1)          // count_d_main
	put32(&buf, 1)          // count_f_main
	put32(&buf, 0)          // count_d_root
	put32(&buf, 0)          // count_f_root

	names := "root\x00file.txt\x00"
	put32(&buf, uint32(len(names)))
	buf = append(buf, []byte("prefix\x00\x00")...)
	buf = append(buf, make([]byte, 120)...)

	// main folder record, layout LE7 (28 bytes)
	buf = append(buf, 0, 0, 0, 0) // name_crc
	put32(&buf, 0xFFFFFFFF)       // next_id = -1
	put32(&buf, 0xFFFFFFFF)       // parent_idx = -1 (root)
	buf = append(buf, 0, 0, 0, 0) // flags
	put32(&buf, 0)                // name_offset -> "root"
	put32(&buf, 0xFFFFFFFF)       // first_child_d = -1
	put32(&buf, 0)                // first_child_f -> file 0

	// main file record, layout LE7 (48 bytes)
	buf = append(buf, 0, 0, 0, 0) // name_crc
	put32(&buf, 0xFFFFFFFF)       // next_id
	put32(&buf, 0)                // parent_idx -> folder 0
	buf = append(buf, 0, 0, 0, 0) // flags
	put32(&buf, 5)                // name_offset -> "file.txt"
	put64(&buf, 0)                // offset
	put64(&buf, 11)               // size
	buf = append(buf, 0, 0, 0, 0) // data_crc
	put64(&buf, 0)                // write_time

	buf = append(buf, []byte(names)...)
	return buf
}

func TestAdminV1TreeDataAndExport(t *testing.T) {
	dir := t.TempDir()
	rmdp := filepath.Join(dir, "data.rmdp")
	content := []byte("hello world") // 11 bytes, matches file record's size/offset
	if err := os.WriteFile(rmdp, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data.bin"), buildV1BinMain(t), 0o644); err != nil {
		t.Fatal(err)
	}

	inst := instance.Static{KeyValue: "k", Root: dir, Cache: t.TempDir(), Export: t.TempDir()}
	a := NewAdmin(inst, rmdp, log.NewStdLogger(os.Stderr), nil)

	tree, err := a.Tree()
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	folder, ok := tree.Folders[0]
	if !ok || folder.Name != "root" {
		t.Fatalf("folder = %+v", folder)
	}
	file, ok := tree.Files[0]
	if !ok || file.Name != "file.txt" {
		t.Fatalf("file = %+v", file)
	}
	if file.Parent() != folder {
		t.Fatalf("file.Parent() did not resolve to folder 0")
	}
	if got := file.PathRaw(); got != "root/file.txt" {
		t.Fatalf("PathRaw = %q, want %q", got, "root/file.txt")
	}

	data, err := file.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("Data = %q, want %q", data, "hello world")
	}

	exported, err := file.IsExported()
	if err != nil || !exported {
		t.Fatalf("IsExported = %v, %v, want true, nil", exported, err)
	}
}

// buildV2ArchiveWithChunk assembles a minimal .rmdtoc TOC with one
// folder, one file referencing a single DataChunks entry (table.Chnk),
// and one archive record naming a sibling "pack0.bin" file.
func buildV2ArchiveWithChunk(t *testing.T) []byte {
	t.Helper()

	var dcp []byte
	fldrOfst := len(dcp)
	put32(&dcp, 0) // parent_idx == own index 0: v2's self-parent root marker
	put32(&dcp, 0)          // next_id
	put32(&dcp, 0)          // next_count
	put32(&dcp, 0)          // file_index
	put32(&dcp, 1)          // file_count
	put32(&dcp, 0)          // name.ofst -> "root"
	put32(&dcp, 4)          // name.size

	fileOfst := len(dcp)
	put32(&dcp, 0)  // chunks.ofst -> DataChunks index 0
	put32(&dcp, 16) // chunks.size -> one 16-byte chunk record's worth
	put32(&dcp, 0)  // parent_idx -> folder 0
	put32(&dcp, 5)  // name.ofst -> "a.txt"
	put32(&dcp, 5)  // name.size
	put32(&dcp, 5)  // size (content length)
	put32(&dcp, 0)  // metadata.ofst
	put32(&dcp, 0)  // metadata.size

	archOfst := len(dcp)
	put32(&dcp, 11)                       // path.ofst -> "pack0.bin"
	put32(&dcp, 9)                        // path.size
	dcp = append(dcp, make([]byte, 8)...) // hash

	stngOfst := len(dcp)
	dcp = append(dcp, []byte("root\x00a.txt\x00pack0.bin")...)
	stngSize := len(dcp) - stngOfst

	chnkOfst := len(dcp)
	dcp = append(dcp, 0x00)       // lz4 = false
	dcp = append(dcp, 0x00, 0x00) // archive_idx = 0
	dcp = append(dcp, 0, 0, 0, 0, 0) // offset (5 little-endian bytes) = 0 within pack0.bin
	put32(&dcp, 5)                // decompressed = 5
	put32(&dcp, 5)                // compressed = 5 (unused, not LZ4)

	if len(dcp)%8 != 0 {
		t.Fatalf("fixture decompressed size %d is not 8-aligned", len(dcp))
	}

	var raw []byte
	raw = append(raw, []byte(tocMagicForTest)...)
	put32(&raw, 2) // version

	headerEnd := 4 + 4 + 10*8
	tablOfst := headerEnd
	chunkPayloadOfst := tablOfst + 16

	writeOfSz := func(buf *[]byte, ofst, size uint32) {
		put32(buf, ofst)
		put32(buf, size)
	}
	writeOfSz(&raw, uint32(tablOfst), 16)
	writeOfSz(&raw, uint32(archOfst), 1)
	writeOfSz(&raw, uint32(fldrOfst), 1)
	writeOfSz(&raw, uint32(fileOfst), 1)
	writeOfSz(&raw, uint32(stngOfst), uint32(stngSize))
	writeOfSz(&raw, 0, 0) // mdty
	writeOfSz(&raw, 0, 0) // mtdt
	writeOfSz(&raw, 0, 0) // unk0
	writeOfSz(&raw, 0, 0) // unk1
	writeOfSz(&raw, uint32(chnkOfst), 16)

	// TOC-bootstrap chunk record: one uncompressed block covering the
	// whole dcp payload.
	raw = append(raw, 0x00)       // lz4 = false
	raw = append(raw, 0x00, 0x00) // archive_idx
	offsetBytes := make([]byte, 5)
	o := chunkPayloadOfst
	for i := 0; i < 5; i++ {
		offsetBytes[i] = byte(o & 0xFF)
		o >>= 8
	}
	raw = append(raw, offsetBytes...)
	put32(&raw, uint32(len(dcp))) // decompressed
	put32(&raw, uint32(len(dcp))) // compressed

	raw = append(raw, dcp...)
	return raw
}

const tocMagicForTest = "COTR"

func TestAdminV2TreeDataAndExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pack.rmdtoc")
	if err := os.WriteFile(path, buildV2ArchiveWithChunk(t), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pack0.bin"), []byte("howdy"), 0o644); err != nil {
		t.Fatal(err)
	}

	inst := instance.Static{KeyValue: "k", Root: dir, Cache: t.TempDir(), Export: t.TempDir()}
	a := NewAdmin(inst, path, log.NewStdLogger(os.Stderr), nil)

	tree, err := a.Tree()
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	file, ok := tree.Files[0]
	if !ok || file.Name != "a.txt" {
		t.Fatalf("file = %+v", file)
	}
	if len(file.ChunksIDs) != 1 || file.ChunksIDs[0] != 0 {
		t.Fatalf("ChunksIDs = %v, want [0]", file.ChunksIDs)
	}

	data, err := a.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if len(data.Chunks) != 1 {
		t.Fatalf("len(Chunks) = %d, want 1", len(data.Chunks))
	}
	if len(data.Archives) != 1 || filepath.Base(data.Archives[0].Path) != "pack0.bin" {
		t.Fatalf("Archives = %+v", data.Archives)
	}

	bytes, err := file.Data()
	if err != nil {
		t.Fatalf("file.Data: %v", err)
	}
	if string(bytes) != "howdy" {
		t.Fatalf("file data = %q, want %q", bytes, "howdy")
	}
}

func TestAdminUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thing.txt")
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		t.Fatal(err)
	}
	inst := instance.Static{KeyValue: "k", Root: dir, Cache: t.TempDir(), Export: t.TempDir()}
	a := NewAdmin(inst, path, log.NewStdLogger(os.Stderr), nil)
	if _, err := a.Tree(); err != ErrUnsupportedExtension {
		t.Fatalf("got %v, want ErrUnsupportedExtension", err)
	}
}
