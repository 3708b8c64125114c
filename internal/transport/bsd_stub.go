//go:build !bsd

package transport

import "context"

// BSDTransport placeholder for builds without the "bsd" build tag.
type BSDTransport struct{}

func NewBSDTransport() *BSDTransport { return &BSDTransport{} }

func (t *BSDTransport) Init(ctx context.Context) error {
	return ErrNotBuiltIn{Kind: BSD}
}

func (t *BSDTransport) Open(ctx context.Context, req OpenRequest) (Session, error) {
	return nil, ErrNotBuiltIn{Kind: BSD}
}
