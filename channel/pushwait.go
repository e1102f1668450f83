// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"context"
	"errors"

	"code.hybscloud.com/spin"

	hicr "code.hybscloud.com/hicr"
)

// PushWait repeatedly calls push until it succeeds, ctx is cancelled, or
// push fails with an error other than a capacity or lock-contention signal
// ([hicr.CapacityError], [hicr.LockContention]). A fence in
// progress is not cancellable, but the wait loop itself checks ctx between
// attempts, matching the cancellation contract: no in-flight memcpy is
// aborted, only the retry loop around it.
//
// This is the frontend-owned blocking counterpart to a channel's
// non-blocking core push, built the same way code.hybscloud.com/lfq
// expects callers to retry ErrWouldBlock with backoff — here the backoff
// is [spin.Wait] rather than the caller's own loop.
func PushWait(ctx context.Context, push func() error) error {
	sw := spin.Wait{}
	for {
		err := push()
		if err == nil {
			return nil
		}
		var capErr *hicr.CapacityError
		var lockErr *hicr.LockContention
		if !errors.As(err, &capErr) && !errors.As(err, &lockErr) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		sw.Once()
	}
}
