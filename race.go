// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package hicr

// RaceEnabled is true when the race detector is active.
// Used by tests to cut the iteration count of concurrent stress tests,
// which run much slower under the race detector.
const RaceEnabled = true
