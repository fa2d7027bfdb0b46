package errors

import (
	"context"
)

// CheckContext rejects work when the caller's context is already done.
// Decision entry points call this before touching any shared state so a
// canceled evaluation never records a precedent instance.
func CheckContext(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return WithFields(Wrap(err, Canceled, operation+" canceled"), Fields{
			"operation": operation,
		})
	}
	return nil
}
