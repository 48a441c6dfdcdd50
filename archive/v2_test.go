// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package archive

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/northlight-forge/nlarc/instance"
	"github.com/northlight-forge/nlarc/log"
)

// buildV2Archive assembles a minimal .rmdtoc file: a COTR header with one
// folder, one file, one archive, and a single uncompressed chunk holding
// the decompressed TOC blob (fldr+file+arch+stng tables; mdty/mtdt/unk/
// chnk sections left empty).
func buildV2Archive(t *testing.T) []byte {
	t.Helper()
	put32 := func(buf *[]byte, v uint32) {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		*buf = append(*buf, b...)
	}

	var dcp []byte
	fldrOfst := len(dcp)
	put32(&dcp, 0xFFFFFFFF) // parent_idx = -1 (root)
	put32(&dcp, 0)          // next_id
	put32(&dcp, 0)          // next_count
	put32(&dcp, 0)          // file_index
	put32(&dcp, 1)          // file_count
	put32(&dcp, 0)          // name.ofst -> "root" in stng
	put32(&dcp, 4)          // name.size

	fileOfst := len(dcp)
	put32(&dcp, 0)  // chunks.ofst
	put32(&dcp, 0)  // chunks.size
	put32(&dcp, 0)  // parent_idx = folder 0
	put32(&dcp, 5)  // name.ofst -> "a.txt"
	put32(&dcp, 5)  // name.size
	put32(&dcp, 42) // size
	put32(&dcp, 0)  // metadata.ofst
	put32(&dcp, 0)  // metadata.size

	archOfst := len(dcp)
	put32(&dcp, 11)                       // path.ofst -> "pack0.bin"
	put32(&dcp, 9)                        // path.size
	dcp = append(dcp, make([]byte, 8)...) // hash

	stngOfst := len(dcp)
	dcp = append(dcp, []byte("root\x00a.txt\x00pack0.bin")...)
	stngSize := len(dcp) - stngOfst

	// 16(arch) + 28(fldr) + 32(file) + 0(mdty) + 0(chnk) + stngSize(20) +
	// 0(mtdt) = 96, already a multiple of 8: no padding required.
	if len(dcp)%8 != 0 {
		t.Fatalf("test fixture decompressed size %d is not 8-aligned", len(dcp))
	}

	var raw []byte
	raw = append(raw, []byte(tocMagic)...)
	put32(&raw, 2) // version

	headerEnd := 4 + 4 + 10*8 // magic + version + 10 OfSz slots
	tablOfst := headerEnd
	chunkPayloadOfst := tablOfst + 16 // one 16-byte chunk record

	writeOfSz := func(buf *[]byte, ofst, size uint32) {
		put32(buf, ofst)
		put32(buf, size)
	}
	writeOfSz(&raw, uint32(tablOfst), 16)            // tabl: one 16-byte raw chunk record
	writeOfSz(&raw, uint32(archOfst), 1)             // arch: element count
	writeOfSz(&raw, uint32(fldrOfst), 1)             // fldr: element count
	writeOfSz(&raw, uint32(fileOfst), 1)             // file: element count
	writeOfSz(&raw, uint32(stngOfst), uint32(stngSize)) // stng: byte range
	writeOfSz(&raw, 0, 0)                            // mdty
	writeOfSz(&raw, 0, 0)                            // mtdt
	writeOfSz(&raw, 0, 0)                            // unk0
	writeOfSz(&raw, 0, 0)                            // unk1
	writeOfSz(&raw, 0, 0)                            // chnk

	// chunk record: lz4=false, archive_idx=0, offset(5 bytes little)=chunkPayloadOfst
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

func TestReaderV2DecompressesAndParsesTOC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pack.rmdtoc")
	if err := os.WriteFile(path, buildV2Archive(t), 0o644); err != nil {
		t.Fatal(err)
	}
	inst := instance.Static{KeyValue: "k", Root: dir, Cache: t.TempDir(), Export: t.TempDir()}
	r, err := OpenV2(inst, path, log.NewStdLogger(os.Stderr))
	if err != nil {
		t.Fatalf("OpenV2: %v", err)
	}
	if len(r.Folders) != 1 || len(r.Files) != 1 || len(r.Archives) != 1 {
		t.Fatalf("got folders=%d files=%d archives=%d, want 1/1/1", len(r.Folders), len(r.Files), len(r.Archives))
	}
	if got := r.StringAt(r.Folders[0].Name); got != "root" {
		t.Fatalf("folder name = %q, want %q", got, "root")
	}
	if got := r.StringAt(r.Files[0].Name); got != "a.txt" {
		t.Fatalf("file name = %q, want %q", got, "a.txt")
	}
	if r.Files[0].Size != 42 {
		t.Fatalf("file size = %d, want 42", r.Files[0].Size)
	}
	names := r.BuildNameDict("arch")
	if names[0] != "pack0.bin" {
		t.Fatalf("arch name = %q, want %q", names[0], "pack0.bin")
	}
}

func TestReaderV2RejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.rmdtoc")
	bad := append([]byte("NOPE"), make([]byte, 100)...)
	if err := os.WriteFile(path, bad, 0o644); err != nil {
		t.Fatal(err)
	}
	inst := instance.Static{KeyValue: "k", Root: dir, Cache: t.TempDir(), Export: t.TempDir()}
	if _, err := OpenV2(inst, path, log.NewStdLogger(os.Stderr)); err != ErrBadMagic {
		t.Fatalf("err = %v, want ErrBadMagic", err)
	}
}
