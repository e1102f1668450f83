// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package layout provides the cache-line padding helper shared by types
// that hold a hot atomic cell next to other fields.
//
// Adapted from code.hybscloud.com/lfq's options.go pad types, used wherever
// an atomic cell needs false-sharing protection from its neighbors.
package layout

// PadShort pads out a cache line after an 8-byte field.
type PadShort [64 - 8]byte
