// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package errs2

import (
	"context"
	"errors"
)

// IsCanceled returns true when the error is a context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
