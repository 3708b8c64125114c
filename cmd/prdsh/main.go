// Command prdsh is a parallel remote execution engine: fan a shell command
// or a file copy out across a bounded-concurrency set of hosts, interleave
// tagged output, and report an aggregate exit status. Built around
// internal/dispatch; see SPEC_FULL.md for the full design.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	env "github.com/jhunt/go-envirotron"
	"github.com/jhunt/go-log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/mnikhil-git/mnikhil-pdsh/internal/config"
	"github.com/mnikhil-git/mnikhil-pdsh/internal/dispatch"
	"github.com/mnikhil-git/mnikhil-pdsh/internal/hostlist"
	"github.com/mnikhil-git/mnikhil-pdsh/internal/ioout"
	"github.com/mnikhil-git/mnikhil-pdsh/internal/signalmediator"
	"github.com/mnikhil-git/mnikhil-pdsh/internal/transport"
)

var opts = config.Defaults()
var hostFlag []string
var verbose bool
var selectedMode mode

func main() {
	env.Override(&opts)

	root := &cobra.Command{
		Use:   "prdsh",
		Short: "parallel remote shell and copy dispatcher",
	}
	root.PersistentFlags().StringSliceVarP(&hostFlag, "hosts", "w", nil, "target hosts (repeatable, comma-separated)")
	root.PersistentFlags().StringVar(&opts.HostFile, "hostfile", "", "file of target hosts, one per line")
	root.PersistentFlags().IntVarP(&opts.Fanout, "fanout", "f", opts.Fanout, "max concurrent connections")
	root.PersistentFlags().StringVarP(&opts.TransportKind, "rcmd-type", "R", opts.TransportKind, "transport: ssh, kerberos, bsd, interconnect")
	root.PersistentFlags().StringVarP(&opts.RemoteUser, "user", "l", opts.RemoteUser, "remote username")
	root.PersistentFlags().IntVar(&opts.Port, "port", opts.Port, "remote port")
	root.PersistentFlags().DurationVarP(&opts.ConnectTimeout, "connect-timeout", "t", opts.ConnectTimeout, "per-host connect timeout")
	root.PersistentFlags().DurationVarP(&opts.CommandTimeout, "command-timeout", "u", opts.CommandTimeout, "per-host command timeout")
	root.PersistentFlags().BoolVarP(&opts.Batch, "batch", "b", false, "abort immediately on interrupt, no enumeration")
	root.PersistentFlags().BoolVarP(&verbose, "debug", "d", false, "debug logging and per-run timing dump")
	root.PersistentFlags().StringVar(&opts.DNSServer, "dns-server", "", "query this DNS server directly instead of the platform resolver")
	root.PersistentFlags().StringVar(&opts.IdentityFile, "identity", "", "ssh private key file")
	root.PersistentFlags().BoolVarP(&opts.AgentForward, "forward-agent", "A", false, "forward ssh-agent to remote peers")
	root.PersistentFlags().StringVar(&opts.KerberosRealm, "krb-realm", "", "kerberos realm")
	root.PersistentFlags().StringVar(&opts.KerberosKDC, "krb-kdc", "", "kerberos KDC host")
	root.PersistentFlags().StringVar(&opts.KerberosKeytab, "krb-keytab", "", "kerberos keytab path")
	root.PersistentFlags().StringVar(&opts.KerberosPrincipal, "krb-principal", "", "kerberos principal")

	root.AddCommand(runCommand())
	root.AddCommand(copyCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "prdsh: %s\n", err)
		os.Exit(2)
	}
}

func runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run -- <command>",
		Short: "run a shell command on every target host",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = joinArgs(args)
			selectedMode = modeCommand
			return runDispatch()
		},
	}
	cmd.Flags().BoolVar(&opts.SeparateStderr, "separate-stderr", false, "read stderr independently from stdout")
	cmd.Flags().BoolVar(&opts.GetStat, "getstat", false, "extract the remote command's real exit status")
	cmd.Flags().StringVar(&opts.DSHPath, "dshpath", "", "shell fragment to prepend to the remote command (DSHPATH)")
	cmd.Flags().BoolVarP(&opts.Labels, "labels", "L", opts.Labels, "prefix output lines with the source host")
	return cmd
}

func copyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy <file>... <remote-target>",
		Short: "push files to every target host",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.InputFiles = args[:len(args)-1]
			opts.RemoteTarget = args[len(args)-1]
			selectedMode = modeCopy
			return runDispatch()
		},
	}
	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "recurse into directories")
	cmd.Flags().BoolVarP(&opts.Preserve, "preserve", "p", false, "preserve modification times")
	return cmd
}

// mode is a tiny local record of which subcommand ran; runDispatch maps it
// onto dispatch.Mode.
type mode int

const (
	modeCommand mode = iota
	modeCopy
)

func joinArgs(args []string) string {
	out := args[0]
	for _, a := range args[1:] {
		out += " " + a
	}
	return out
}

func runDispatch() error {
	level := "info"
	if verbose {
		level = "debug"
	}
	log.SetupLogging(log.LogConfig{Type: "console", Level: level})

	runID := uuid.New().String()

	hosts, err := resolveHostList()
	if err != nil {
		return err
	}
	log.Infof("run %s: dispatching to %d host(s), fanout %d", runID, len(hosts), opts.Fanout)

	registry := transport.NewRegistry()
	registry.Register(transport.SSH, func() transport.Transport {
		return transport.NewSSHTransport(buildSSHAuth(), opts.AgentForward)
	})
	registry.Register(transport.Kerberos, func() transport.Transport {
		return transport.NewKerberosTransport(opts.KerberosRealm, opts.KerberosKDC, opts.KerberosKeytab, opts.KerberosPrincipal)
	})
	registry.Register(transport.BSD, func() transport.Transport {
		return transport.NewBSDTransport()
	})
	registry.Register(transport.Interconnect, func() transport.Transport {
		return transport.NewInterconnectTransport()
	})

	kind := transport.Kind(opts.TransportKind)
	tr, err := registry.New(kind)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := tr.Init(ctx); err != nil {
		return fmt.Errorf("init %s transport: %w", kind, err)
	}

	colored := isatty.IsTerminal(os.Stdout.Fd())
	sink := ioout.New(os.Stdout, os.Stderr, opts.Labels, colored)

	d := &dispatch.Dispatcher{
		Transport: tr,
		Resolver:  transport.NewResolver(opts.DNSServer),
		Sink:      sink,
	}

	dopts := &dispatch.Options{
		Hosts:          hosts,
		Fanout:         opts.Fanout,
		TransportKind:  kind,
		LocalUser:      currentUser(),
		RemoteUser:     effectiveRemoteUser(),
		Port:           opts.Port,
		ConnectTimeout: opts.ConnectTimeout,
		CommandTimeout: opts.CommandTimeout,
		GetStat:        opts.GetStat,
		DSHPath:        opts.DSHPath,
		Batch:          opts.Batch,
	}
	if selectedMode == modeCopy {
		dopts.Mode = dispatch.ModeCopy
		dopts.Copy = dispatch.CopySpec{
			InputFiles:   opts.InputFiles,
			RemoteTarget: opts.RemoteTarget,
			Preserve:     opts.Preserve,
			Recursive:    opts.Recursive,
		}
	} else {
		dopts.Mode = dispatch.ModeCommand
		dopts.Command = dispatch.CommandSpec{
			Command:        opts.Command,
			Labels:         opts.Labels,
			SeparateStderr: opts.SeparateStderr,
		}
	}

	table, err := d.Prepare(ctx, dopts)
	if err != nil {
		return err
	}

	mediator := signalmediator.New(opts.Batch, os.Stderr,
		dispatch.Statuses(table, dopts),
		dispatch.ForwardAll(table),
		cancel,
	)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	go func() {
		for sig := range sigCh {
			_ = sig
			mediator.Handle(int(syscall.SIGINT))
		}
	}()
	defer signal.Stop(sigCh)

	status, err := d.Run(ctx, cancel, table, dopts)
	if err != nil {
		return err
	}
	log.Infof("run %s: finished with status %d", runID, status)

	if verbose {
		dispatch.DumpStats(os.Stderr, table)
	}

	os.Exit(status)
	return nil
}

func resolveHostList() ([]string, error) {
	var fromFile []string
	if opts.HostFile != "" {
		var err error
		fromFile, err = hostlist.Load(opts.HostFile)
		if err != nil {
			return nil, err
		}
	}
	hosts := hostlist.Merge(hostFlag, fromFile)
	if len(hosts) == 0 {
		return nil, fmt.Errorf("no target hosts given (use -w or --hostfile)")
	}
	return hosts, nil
}

func buildSSHAuth() *transport.SSHAuth {
	auth := &transport.SSHAuth{}

	if a, err := connectAgent(); err == nil && a != nil {
		auth.Agent = a
	}

	if opts.IdentityFile != "" {
		if signer, err := loadPrivateKey(opts.IdentityFile); err == nil {
			auth.PrivateKey = signer
		} else {
			log.Errorf("load identity %s: %s", opts.IdentityFile, err)
		}
	}

	if auth.Agent == nil && auth.PrivateKey == nil && transport.IsTerminal(int(os.Stdin.Fd())) {
		if pw, err := transport.ReadPassword(fmt.Sprintf("%s's password: ", effectiveRemoteUser())); err == nil {
			auth.Password = pw
		}
	}

	return auth
}

func connectAgent() (agent.Agent, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, err
	}
	return agent.NewClient(conn), nil
}

func loadPrivateKey(path string) (ssh.Signer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(b)
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

func effectiveRemoteUser() string {
	if opts.RemoteUser != "" {
		return opts.RemoteUser
	}
	return currentUser()
}
