//go:build !interconnect

package transport

import "context"

// InterconnectTransport placeholder for builds without the "interconnect"
// build tag.
type InterconnectTransport struct{}

func NewInterconnectTransport() *InterconnectTransport { return &InterconnectTransport{} }

func (t *InterconnectTransport) Init(ctx context.Context) error {
	return ErrNotBuiltIn{Kind: Interconnect}
}

func (t *InterconnectTransport) Open(ctx context.Context, req OpenRequest) (Session, error) {
	return nil, ErrNotBuiltIn{Kind: Interconnect}
}
