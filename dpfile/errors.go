// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package dpfile decodes dp_-prefixed files: packed blobs of offset
// arrays pointing into a trailing data region, referenced by the cid
// object graph. Grounded on
// torchbearer/northlight_internal/dpfile.py's BinFileDP/DP_Offset.
package dpfile

import "errors"

// ErrTooSmall is returned when a dp_ file is smaller than the 16-byte
// window needed to probe its header variant.
var ErrTooSmall = errors.New("dpfile: data too small to probe header")

// ErrUnknownHeader is returned when none of the three header-size
// formulas reconcile with the file's length.
var ErrUnknownHeader = errors.New("dpfile: could not determine header variant")
