package domain

import "context"

// Notifier delivers out-of-band messages. Calls are fire-and-forget from
// the protocol's perspective: a delivery failure must not roll back an
// already-issued code or deal.
type Notifier interface {
	SendCode(ctx context.Context, channel VerificationType, target, code string) error
	SendDealInvite(ctx context.Context, email, publicID, token string) error
}

// SignatureStore persists captured signature images and hands back the
// opaque reference recorded on the deal.
type SignatureStore interface {
	Put(ctx context.Context, dealID string, image []byte) (string, error)
	PresignGet(ctx context.Context, ref string) (string, error)
}
