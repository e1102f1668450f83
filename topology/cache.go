// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package topology

// CacheKind is the contents classification of a cache level.
type CacheKind string

const (
	CacheInstruction CacheKind = "instruction"
	CacheData        CacheKind = "data"
	CacheUnified     CacheKind = "unified"
)

// CacheInfo describes one cache level attached to a compute resource.
// Field names follow the wire casing used by the original topology
// reporter so serialized output round-trips with external tooling.
type CacheInfo struct {
	SizeBytes     uint64    `json:"Size (Bytes)"`
	LineSizeBytes uint64    `json:"Line Size (Bytes)"`
	Level         int       `json:"Level"`
	Type          CacheKind `json:"Type"`
	Shared        bool      `json:"Shared"`
}
