//go:build !kerberos

package transport

import "context"

// KerberosTransport is a disabled placeholder in builds without the
// "kerberos" build tag, matching the reference implementation's HAVE_KRB4
// conditional compilation: the transport kind still exists in the
// enumeration, it is just not wired to a real implementation here.
type KerberosTransport struct{}

func NewKerberosTransport(realm, kdc, keytabPath, principal string) *KerberosTransport {
	return &KerberosTransport{}
}

func (t *KerberosTransport) Init(ctx context.Context) error {
	return ErrNotBuiltIn{Kind: Kerberos}
}

func (t *KerberosTransport) Open(ctx context.Context, req OpenRequest) (Session, error) {
	return nil, ErrNotBuiltIn{Kind: Kerberos}
}
