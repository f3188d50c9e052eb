package types

import (
	"context"
)

// Context Keys
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	clientIPKey  contextKey = "client_ip"
	proxyIPKey   contextKey = "proxy_ip"
)

// WithRequestID stores the correlation id in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the correlation id from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithClientIP stores the reported client IP in the context. When the request
// arrived through a proxy this is the first X-Forwarded-For hop, otherwise the
// socket peer address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// GetClientIP retrieves the reported client IP from the context.
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// WithProxyIP stores the socket peer address in the context when it differs
// from the reported client IP.
func WithProxyIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, proxyIPKey, ip)
}

// GetProxyIP retrieves the proxy IP from the context. Empty when the request
// did not pass through a known proxy.
func GetProxyIP(ctx context.Context) string {
	ip, _ := ctx.Value(proxyIPKey).(string)
	return ip
}
