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

// buildV1Bin assembles a minimal .bin sidecar for minor version 7: one
// root folder, one root file, zero main entries, and a 2-name trailing
// name blob. Layout mirrors readers.py's ReaderNLEv10.__init__.
func buildV1Bin(t *testing.T) []byte {
	t.Helper()
	var buf []byte
	put32 := func(v uint32) { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); buf = append(buf, b...) }

	buf = append(buf, 0x00) // endian selector: false -> little
	put32(7)                // v_minor
	put32(0)                // count_d_main
	put32(0)                // count_f_main
	put32(1)                // count_d_root
	put32(1)                // count_f_root

	names := "root\x00file.txt\x00"
	put32(uint32(len(names))) // nsz
	buf = append(buf, []byte("prefix\x00\x00")...) // 8-byte pfx
	buf = append(buf, make([]byte, 120)...)        // uhd

	// one root folder record, layout LE7 (28 bytes): name_crc(4) next_id(4)
	// parent_idx(4) flags(4) name_offset(4) first_child_d(4) first_child_f(4)
	buf = append(buf, 0, 0, 0, 0) // name_crc
	put32(0xFFFFFFFF)            // next_id = -1
	put32(0xFFFFFFFF)            // parent_idx = -1
	buf = append(buf, 0, 0, 0, 0) // flags
	put32(0)                      // name_offset -> "root"
	put32(0xFFFFFFFF)             // first_child_d = -1
	put32(0xFFFFFFFF)             // first_child_f = -1

	// one root file record, layout LE7 (48 bytes)
	buf = append(buf, 0, 0, 0, 0) // name_crc
	put32(0xFFFFFFFF)             // next_id
	put32(0)                      // parent_idx = 0 (root folder)
	buf = append(buf, 0, 0, 0, 0) // flags
	put32(5)                      // name_offset -> "file.txt"
	put64 := func(v uint64) { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); buf = append(buf, b...) }
	put64(0)   // offset
	put64(123) // size
	buf = append(buf, 0, 0, 0, 0) // data_crc
	put64(0)                      // write_time

	buf = append(buf, []byte(names)...)
	return buf
}

func TestReaderV1ParsesHeaderAndRootTables(t *testing.T) {
	dir := t.TempDir()
	rmdp := filepath.Join(dir, "data.rmdp")
	if err := os.WriteFile(rmdp, []byte{0x01}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data.bin"), buildV1Bin(t), 0o644); err != nil {
		t.Fatal(err)
	}

	inst := instance.Static{KeyValue: "k", Root: dir, Cache: t.TempDir(), Export: t.TempDir()}
	r, err := OpenV1(inst, rmdp, log.NewStdLogger(os.Stderr))
	if err != nil {
		t.Fatalf("OpenV1: %v", err)
	}
	if r.VersionMinor != 7 {
		t.Fatalf("VersionMinor = %d, want 7", r.VersionMinor)
	}
	if len(r.RootDirs) != 1 || len(r.RootFiles) != 1 {
		t.Fatalf("root tables: dirs=%d files=%d, want 1/1", len(r.RootDirs), len(r.RootFiles))
	}
	if r.RootFiles[0].Size != 123 {
		t.Fatalf("file size = %d, want 123", r.RootFiles[0].Size)
	}
	name, err := r.NameAt(r.RootDirs[0].NameOffset)
	if err != nil {
		t.Fatalf("NameAt: %v", err)
	}
	if name != "root" {
		t.Fatalf("folder name = %q, want %q", name, "root")
	}
}

func TestReaderV1MissingSidecarFails(t *testing.T) {
	dir := t.TempDir()
	rmdp := filepath.Join(dir, "data.rmdp")
	if err := os.WriteFile(rmdp, []byte{0x01}, 0o644); err != nil {
		t.Fatal(err)
	}
	inst := instance.Static{KeyValue: "k", Root: dir, Cache: t.TempDir(), Export: t.TempDir()}
	if _, err := OpenV1(inst, rmdp, log.NewStdLogger(os.Stderr)); err != ErrMissingSidecar {
		t.Fatalf("err = %v, want ErrMissingSidecar", err)
	}
}
