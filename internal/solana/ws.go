package solana

import "context"

// SignatureSubscriber notifies when a signature reaches confirmed commitment.
type SignatureSubscriber interface {
	// SubscribeSignature returns once the node acknowledged the subscription.
	// The channel yields at most one notification and is then closed.
	SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureNotification, error)

	Close() error
}

// SignatureNotification reports the processing result of a signature.
// Err is the node's transaction error, nil on success.
type SignatureNotification struct {
	Signature string
	Slot      int64
	Err       interface{}
}
