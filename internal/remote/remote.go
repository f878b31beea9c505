// Package remote dials the SSH host that runs the modem program.
package remote

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/drunlade/go-flamp/internal/config"
)

// PasswordEnv names the environment variable checked for an SSH password.
const PasswordEnv = "SSH_PASSWORD"

// Options selects how to authenticate and verify the host.
type Options struct {
	Host    string
	User    string
	KeyFile string

	// Password is used when set, otherwise PasswordEnv is consulted
	Password string

	// Insecure skips host key verification
	Insecure bool

	// KnownHosts defaults to ~/.ssh/known_hosts
	KnownHosts string

	Timeout time.Duration
}

// FromConfig fills Options from the station configuration.
func FromConfig(c config.SSHConfig) Options {
	return Options{Host: c.Host, User: c.User, KeyFile: c.KeyFile}
}

// ClientConfig builds the ssh client configuration.
func (o Options) ClientConfig() (*ssh.ClientConfig, error) {
	if o.User == "" {
		return nil, fmt.Errorf("ssh user is required")
	}

	var auth []ssh.AuthMethod
	if o.KeyFile != "" {
		key, err := os.ReadFile(o.KeyFile)
		if err != nil {
			return nil, err
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", o.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	pass := o.Password
	if pass == "" {
		pass = os.Getenv(PasswordEnv)
	}
	if pass != "" {
		auth = append(auth, ssh.Password(pass))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no ssh credentials: set a key file or %s", PasswordEnv)
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if !o.Insecure {
		path := o.KnownHosts
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(home, ".ssh", "known_hosts")
		}
		cb, err := knownhosts.New(path)
		if err != nil {
			return nil, fmt.Errorf("known hosts: %w", err)
		}
		hostKey = cb
	}

	timeout := o.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &ssh.ClientConfig{
		User:            o.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}

// Dial connects to the host, adding port 22 when none is given.
func Dial(o Options) (*ssh.Client, error) {
	cfg, err := o.ClientConfig()
	if err != nil {
		return nil, err
	}
	addr := o.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}
	return ssh.Dial("tcp", addr, cfg)
}
