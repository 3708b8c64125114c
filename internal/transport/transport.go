// Package transport provides a uniform façade over the several remote-shell
// mechanisms a worker can speak: ssh, kerberos-authenticated ssh, classical
// BSD rcmd, and a proprietary gang-launch interconnect. Callers depend only
// on the Transport and Session interfaces; the concrete variant is selected
// by Kind and, for the kerberos/bsd/interconnect variants, by build tag.
package transport

import (
	"context"
	"fmt"
	"io"
)

// Kind names one of the remote-shell mechanisms a worker's record can carry.
type Kind string

const (
	SSH          Kind = "ssh"
	Kerberos     Kind = "kerberos"
	BSD          Kind = "bsd"
	Interconnect Kind = "interconnect"
)

// OpenRequest carries everything a transport needs to establish one
// connection and start a remote command.
type OpenRequest struct {
	Host        string
	Addr        string // pre-resolved IPv4 dotted-quad, or "" to resolve in Open
	LocalUser   string
	RemoteUser  string
	Command     string
	NodeID      int
	WantStderr  bool
	Port        int
}

// Session is the paired stdout/stderr byte stream a transport hands back
// once connected. Stderr is nil unless OpenRequest.WantStderr was set.
type Session interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader
	// Wait blocks for the remote command to exit and returns its exit
	// status (0 on success) along with any transport-level error.
	Wait() (int, error)
	Close() error
	// Signal forwards an operator signal to the remote peer over the
	// transport's own control channel. Transports without a signaling
	// facility (ssh, interconnect) may no-op.
	Signal(signum int) error
}

// Transport opens one connection per call; implementations may be stateful
// (e.g. holding credentials loaded at Init time) but Open itself must be
// safe to call concurrently from multiple worker goroutines.
type Transport interface {
	// Init performs one-time setup (credential loading, network probing)
	// before any worker is launched.
	Init(ctx context.Context) error
	// Open blocks until the remote shell session is ready or ctx is
	// canceled/deadline-exceeded, in which case it returns ctx.Err() (or
	// a wrapped form of it) promptly. This replaces the reference
	// implementation's "unblock SIGALRM only inside connect()" dance with
	// Go's native cancellation.
	Open(ctx context.Context, req OpenRequest) (Session, error)
}

// ErrNotBuiltIn is returned by transports disabled by build tag, mirroring
// the reference implementation's HAVE_KRB4/HAVE_ELAN conditional
// compilation: the variant is a named, real part of the transport-kind
// enumeration, just not compiled into this binary.
type ErrNotBuiltIn struct {
	Kind Kind
}

func (e ErrNotBuiltIn) Error() string {
	return fmt.Sprintf("%s transport: not built into this binary", e.Kind)
}

// Registry resolves a Kind to a constructor. cmd/prdsh registers all four
// kinds at startup; a variant left out by build tag still registers, and
// its Init and Open return ErrNotBuiltIn.
type Registry struct {
	factories map[Kind]func() Transport
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[Kind]func() Transport)}
}

func (r *Registry) Register(kind Kind, factory func() Transport) {
	r.factories[kind] = factory
}

func (r *Registry) New(kind Kind) (Transport, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown transport kind %q", kind)
	}
	return factory(), nil
}
