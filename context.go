package gorbac

import "context"

type contextKey int

const clientIPKey contextKey = iota

// WithClientIP annotates ctx with the caller's remote address. Audit
// events emitted under the returned context carry the address in their
// metadata.
func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
