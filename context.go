package shopAuth

import (
	"context"

	"github.com/MrEthical07/shopAuth/internal/flows"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type deviceNameContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP registration limits, session device metadata and audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithDeviceName attaches a client-reported device label to ctx. It is stored
// on sessions created under ctx.
func WithDeviceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, deviceNameContextKey{}, name)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

func deviceNameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	name, _ := ctx.Value(deviceNameContextKey{}).(string)
	return name
}

func requestMeta(ctx context.Context) flows.RequestMeta {
	return flows.RequestMeta{
		IP:         clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		DeviceName: deviceNameFromContext(ctx),
	}
}
