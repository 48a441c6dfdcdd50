// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bytestream

import "github.com/pierrec/lz4/v4"

// lz4BlockDecompress inflates a raw LZ4 block (no frame header) into dst,
// the same "known output size" framing bytetools.py's lz4.block.decompress
// relies on for the v2 TOC chunk table and data-directory payloads.
func lz4BlockDecompress(src, dst []byte) (int, error) {
	return lz4.UncompressBlock(src, dst)
}
