// Package snsctx carries per-invocation flags through a context.
package snsctx

import "context"

type verboseKey struct{}

// IsVerbose reports whether raw bus traffic should be dumped to the debug log.
func IsVerbose(ctx context.Context) bool {
	v, _ := ctx.Value(verboseKey{}).(bool)
	return v
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, verboseKey{}, value)
}
