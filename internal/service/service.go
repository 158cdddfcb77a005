// Package service exposes typed operations over the backend command gateway.
//
// Each method validates its input, invokes exactly the backend commands it names and decodes the
// answer into model types. A backend `{"error": ...}` answer surfaces as *errs.DomainError.
package service

import (
	"context"

	"github.com/and161185/noteskeeper/internal/gateway"
)

// call invokes command and decodes a successful answer into out (if non-nil).
func call(ctx context.Context, gw gateway.Invoker, out any, command string, args ...string) error {
	res, err := gw.Invoke(ctx, command, args...)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return res.Decode(out)
}
