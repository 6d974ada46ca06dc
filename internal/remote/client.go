package remote

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/sagarmemane135/omnihost/internal/errors"
	"github.com/sagarmemane135/omnihost/internal/inventory"
	"github.com/sagarmemane135/omnihost/internal/logging"
)

// SSHExecutor implements Executor over golang.org/x/crypto/ssh. Each Execute
// call opens its own connection, so the executor itself carries no per-host
// state and is safe for concurrent use.
type SSHExecutor struct {
	logger *logging.Logger
}

// NewSSHExecutor creates an SSH-backed executor.
func NewSSHExecutor(logger *logging.Logger) *SSHExecutor {
	return &SSHExecutor{logger: logger}
}

// Execute connects to the host, runs the command, and captures its output.
// The deadline on ctx bounds the whole attempt: dial, handshake, and run.
func (e *SSHExecutor) Execute(ctx context.Context, host inventory.Host, command string) (Outcome, error) {
	start := time.Now()

	config, err := e.buildSSHConfig(host)
	if err != nil {
		return Outcome{Duration: time.Since(start)},
			errors.New(errors.KindConnection, fmt.Sprintf("failed to build SSH config for %s", host.Name), err)
	}

	address := host.Addr()
	dialer := &net.Dialer{}
	netConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return Outcome{Duration: time.Since(start)}, e.classifyDial(ctx, address, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = netConn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, address, config)
	if err != nil {
		netConn.Close()
		kind := errors.Classify(err)
		if kind == errors.KindUnknown {
			kind = errors.KindConnection
		}
		return Outcome{Duration: time.Since(start)},
			errors.New(kind, fmt.Sprintf("SSH handshake failed for %s: %v", address, err), err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Outcome{Duration: time.Since(start)},
			errors.New(errors.KindConnection, fmt.Sprintf("failed to create session on %s: %v", address, err), err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case err := <-done:
		outcome := Outcome{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				// The command ran; its exit status is the result, not an error.
				outcome.ExitCode = exitErr.ExitStatus()
				return outcome, nil
			}
			return outcome, errors.New(errors.KindConnection,
				fmt.Sprintf("SSH execution error on %s: %v", address, err), err)
		}
		return outcome, nil

	case <-ctx.Done():
		// Best effort to stop the remote process before giving up.
		_ = session.Signal(ssh.SIGTERM)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			_ = session.Signal(ssh.SIGKILL)
		}

		outcome := Outcome{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}
		return outcome, ctx.Err()
	}
}

// classifyDial distinguishes a dial aborted by the caller from a dial that
// genuinely failed to reach the host.
func (e *SSHExecutor) classifyDial(ctx context.Context, address string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New(errors.KindConnection, fmt.Sprintf("failed to connect to %s: %v", address, err), err)
}

// buildSSHConfig creates an SSH client configuration with authentication methods
func (e *SSHExecutor) buildSSHConfig(host inventory.Host) (*ssh.ClientConfig, error) {
	user := host.User
	if user == "" {
		if current := os.Getenv("USER"); current != "" {
			user = current
		} else {
			user = "root"
		}
	}

	authMethods, err := e.getAuthMethods(host)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: e.getHostKeyCallback(),
	}, nil
}

// getAuthMethods returns available authentication methods in order of preference
func (e *SSHExecutor) getAuthMethods(host inventory.Host) ([]ssh.AuthMethod, error) {
	var authMethods []ssh.AuthMethod

	if agentAuth := e.getAgentAuth(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	if host.IdentityFile != "" {
		keyAuth, err := e.getKeyAuth(host.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load identity file %s: %w", host.IdentityFile, err)
		}
		authMethods = append(authMethods, keyAuth)
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no authentication methods available")
	}

	return authMethods, nil
}

// getAgentAuth returns SSH agent authentication if available
func (e *SSHExecutor) getAgentAuth() ssh.AuthMethod {
	if agentConn, err := net.Dial("unix", os.Getenv("SSH_AUTH_SOCK")); err == nil {
		return ssh.PublicKeysCallback(agent.NewClient(agentConn).Signers)
	}
	return nil
}

// getKeyAuth returns public key authentication using the specified private key file
func (e *SSHExecutor) getKeyAuth(keyPath string) (ssh.AuthMethod, error) {
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return ssh.PublicKeys(signer), nil
}

// getHostKeyCallback returns a host key callback that tries known_hosts
// first, then falls back to a warning-based insecure callback so the tool
// keeps working across fleets with unrecorded host keys.
func (e *SSHExecutor) getHostKeyCallback() ssh.HostKeyCallback {
	if homeDir, err := os.UserHomeDir(); err == nil {
		knownHostsFile := homeDir + "/.ssh/known_hosts"
		if _, err := os.Stat(knownHostsFile); err == nil {
			if hostKeyCallback, err := knownhosts.New(knownHostsFile); err == nil {
				return hostKeyCallback
			}
		}
	}

	if hostKeyCallback, err := knownhosts.New("/etc/ssh/ssh_known_hosts"); err == nil {
		return hostKeyCallback
	}

	return ssh.HostKeyCallback(func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if e.logger != nil {
			e.logger.Error("host key verification disabled", "host", hostname)
		}
		return nil
	})
}
