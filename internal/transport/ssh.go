package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// SSHAuth builds the ssh.AuthMethod set for one run: password, private key,
// and/or an agent. Modeled on the teacher's Auth type (auth.go), trimmed to
// the pieces this engine exercises (no passphrase-marshalling goroutine;
// the password is read once by the CLI layer and handed down).
type SSHAuth struct {
	Password   string
	PrivateKey ssh.Signer
	Agent      agent.Agent
}

func (a *SSHAuth) methods() []ssh.AuthMethod {
	var methods []ssh.AuthMethod
	if a.PrivateKey != nil {
		methods = append(methods, ssh.PublicKeys(a.PrivateKey))
	}
	if a.Agent != nil {
		methods = append(methods, ssh.PublicKeysCallback(a.Agent.Signers))
	}
	if a.Password != "" {
		methods = append(methods, ssh.Password(a.Password))
	}
	return methods
}

// SSHTransport dials golang.org/x/crypto/ssh directly, connecting to the
// pre-resolved req.Addr. It does not skip address lookup: Dispatcher.Prepare
// resolves every host, ssh included, before any worker starts. req.Host is
// handed to the dialer only when Addr is empty.
type SSHTransport struct {
	Auth           *SSHAuth
	ForwardAgent   bool
	HostKeyTimeout time.Duration
}

func NewSSHTransport(auth *SSHAuth, forwardAgent bool) *SSHTransport {
	return &SSHTransport{Auth: auth, ForwardAgent: forwardAgent, HostKeyTimeout: 10 * time.Second}
}

func (t *SSHTransport) Init(ctx context.Context) error {
	if t.Auth == nil {
		return fmt.Errorf("ssh transport: no authentication method configured")
	}
	return nil
}

func (t *SSHTransport) Open(ctx context.Context, req OpenRequest) (Session, error) {
	addr := req.Addr
	if addr == "" {
		addr = req.Host
	}
	port := req.Port
	if port == 0 {
		port = 22
	}

	config := &ssh.ClientConfig{
		User: req.RemoteUser,
		Auth: t.Auth.methods(),
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			return nil
		},
		Timeout: t.HostKeyTimeout,
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", req.Host, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, fmt.Sprintf("%s:%d", addr, port), config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake %s: %w", req.Host, err)
	}
	client := ssh.NewClient(clientConn, chans, reqs)

	if t.ForwardAgent && t.Auth.Agent != nil {
		if err := agent.ForwardToAgent(client, t.Auth.Agent); err != nil {
			client.Close()
			return nil, fmt.Errorf("agent forward %s: %w", req.Host, err)
		}
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("session %s: %w", req.Host, err)
	}

	if t.ForwardAgent && t.Auth.Agent != nil {
		if err := agent.RequestAgentForwarding(session); err != nil {
			session.Close()
			client.Close()
			return nil, fmt.Errorf("request agent forwarding %s: %w", req.Host, err)
		}
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, err
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, err
	}

	var stderr io.Reader
	if req.WantStderr {
		stderr, err = session.StderrPipe()
		if err != nil {
			session.Close()
			client.Close()
			return nil, err
		}
	}

	sess := &sshSession{
		client:  client,
		session: session,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		done:    make(chan struct{}),
	}

	// Context cancellation (watchdog deadline, gang abort, double-interrupt)
	// closes the session, which unblocks any in-flight Read/Write exactly
	// as SIGALRM unblocked select()/read() in the reference implementation.
	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-sess.done:
		}
	}()

	if err := session.Start(req.Command); err != nil {
		close(sess.done)
		session.Close()
		client.Close()
		return nil, fmt.Errorf("start command on %s: %w", req.Host, err)
	}

	return sess, nil
}

type sshSession struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	stderr  io.Reader
	done    chan struct{}
}

func (s *sshSession) Stdin() io.WriteCloser { return s.stdin }
func (s *sshSession) Stdout() io.Reader     { return s.stdout }
func (s *sshSession) Stderr() io.Reader     { return s.stderr }

func (s *sshSession) Wait() (int, error) {
	err := s.session.Wait()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*ssh.ExitError); ok {
		return exitErr.ExitStatus(), nil
	}
	return -1, err
}

func (s *sshSession) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	err := s.session.Close()
	s.client.Close()
	return err
}

// Signal is a no-op: ssh has no sideband signal-delivery primitive useful
// here (ssh.Session.Signal() asks the remote process to handle a named
// signal, which is not what the operator's forwarded interrupt means in
// this protocol), matching the reference implementation's RCMD_SSH branch
// of _fwd_signal, which does nothing.
func (s *sshSession) Signal(signum int) error {
	return nil
}

// ReadPassword prompts on the controlling terminal, mirroring the teacher's
// main.go use of golang.org/x/crypto/ssh/terminal (here the maintained
// golang.org/x/term successor).
func ReadPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := readPasswordFromFD(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	return pw, err
}
