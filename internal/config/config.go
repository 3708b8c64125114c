// Package config holds the options a prdsh invocation runs with: the
// fields cobra populates from flags in cmd/prdsh, overridable by
// environment variable via github.com/jhunt/go-envirotron exactly as
// cmd/sfab/main.go's env.Override(&opts) does (SPEC_FULL.md §10).
package config

import "time"

// Options is shared by both the "run" (command-mode) and "copy"
// (copy-mode) subcommands; each subcommand only reads the fields relevant
// to its mode.
type Options struct {
	Hosts    []string
	HostFile string `env:"PRDSH_RCMD_HOSTFILE"`

	Fanout        int    `env:"PRDSH_FANOUT"`
	TransportKind string `env:"PRDSH_RCMD_TYPE"`
	LocalUser     string
	RemoteUser    string `env:"PRDSH_USER"`
	Port          int

	// Command mode.
	Command        string
	SeparateStderr bool
	Labels         bool
	GetStat        bool   `env:"PRDSH_GETSTAT"`
	DSHPath        string `env:"DSHPATH"`

	// Copy mode.
	InputFiles   []string
	RemoteTarget string
	Recursive    bool
	Preserve     bool

	ConnectTimeout time.Duration `env:"PRDSH_CTIMEOUT"`
	CommandTimeout time.Duration `env:"PRDSH_RTIMEOUT"`

	Batch bool
	Debug bool
	Color bool

	DNSServer string `env:"PRDSH_DNS_SERVER"`

	Password     string
	IdentityFile string
	AgentForward bool

	KerberosRealm     string `env:"PRDSH_KRB_REALM"`
	KerberosKDC       string `env:"PRDSH_KRB_KDC"`
	KerberosKeytab    string `env:"PRDSH_KRB_KEYTAB"`
	KerberosPrincipal string `env:"PRDSH_KRB_PRINCIPAL"`
}

// Defaults returns an Options populated with the same baseline values the
// reference implementation's getopt defaults carried (fanout 32, 10s
// connect timeout, no command timeout).
func Defaults() Options {
	return Options{
		Fanout:         32,
		TransportKind:  "ssh",
		Port:           22,
		ConnectTimeout: 10 * time.Second,
		Labels:         true,
	}
}
