package insertdest

import "context"

type senderCtxKey struct{}

// WithSenderClientID attaches the calling worker's message-bus client id to
// ctx, so the block-filled notifier can read it without a process-wide
// thread-id lookup table. Goroutines are not operating-system threads and
// carry no portable identifier of their own, so callers thread their
// client id through the context each insert call already carries instead.
func WithSenderClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, senderCtxKey{}, clientID)
}

func senderClientID(ctx context.Context) string {
	v, _ := ctx.Value(senderCtxKey{}).(string)
	return v
}
