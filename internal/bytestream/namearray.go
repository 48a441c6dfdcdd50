// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bytestream

import (
	"encoding/binary"
	"fmt"
)

// FindNameArrayStart recovers the byte size of a trailing null-terminated
// string array when nothing upstream declares it directly, by scanning
// for a 4-byte little-endian length prefix immediately preceding the
// array whose value equals its own distance from the end of data, and
// verifying the forward walk from there yields exactly wantCount strings.
//
// Grounded on mulch/bytetools.py's find_start_of_nts_array: it walks the
// buffer from the end looking for a length word "nameSize" positioned
// exactly nameSize bytes before the end of the buffer, and accepts the
// first candidate whose forward NUL-terminated-string walk produces
// wantCount entries.
func FindNameArrayStart(data []byte, wantCount int) (int, error) {
	n := len(data)
	for nameSize := 0; nameSize+4 <= n; nameSize++ {
		lenPos := n - nameSize - 4
		if lenPos < 0 {
			break
		}
		got := int(binary.LittleEndian.Uint32(data[lenPos : lenPos+4]))
		if got != nameSize {
			continue
		}
		fwd := New(data)
		if _, err := fwd.Seek(int64(n-nameSize), SeekStart); err != nil {
			continue
		}
		count := 0
		ok := true
		for fwd.Tell() < int64(n) {
			if _, err := fwd.NullTerminatedString(1); err != nil {
				ok = false
				break
			}
			count++
		}
		if ok && count == wantCount {
			return nameSize, nil
		}
	}
	return 0, fmt.Errorf("bytestream: could not recover name array size for count %d", wantCount)
}
