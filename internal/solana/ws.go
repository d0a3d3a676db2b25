package solana

import "context"

// WSClient defines the Solana WebSocket subscription interface used for
// confirmation watching.
type WSClient interface {
	// SubscribeSignature subscribes to the confirmation of one signature
	// at the given commitment. The subscription is one-shot: the channel
	// delivers at most one notification and is then closed. The channel
	// is also closed without a value if the connection drops.
	SubscribeSignature(ctx context.Context, signature string, commitment Commitment) (<-chan SignatureNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification is a signatureSubscribe result message.
type SignatureNotification struct {
	Slot int64
	Err  interface{} // on-chain error, nil if the transaction succeeded
}
