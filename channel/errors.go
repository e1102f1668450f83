// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import hicr "code.hybscloud.com/hicr"

// ErrWouldOverflow is returned by Push when the ring would exceed capacity.
var ErrWouldOverflow = hicr.ErrWouldOverflow

// ErrWouldUnderflow is returned by Pop when the ring holds fewer tokens
// than requested.
var ErrWouldUnderflow = hicr.ErrWouldUnderflow

// ErrPeekOutOfRange is returned by Peek when pos is not less than the
// channel's current depth.
var ErrPeekOutOfRange = hicr.NewLogicError("channel.Peek", "position out of range")
