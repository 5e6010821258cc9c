// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/rollbatch/internal/ctxlog"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConnectTimeout is the default SSH connection timeout.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultPort is the default SSH port.
	DefaultPort = 22
	// DefaultParallelism bounds how many hosts of a batch are contacted at once.
	DefaultParallelism = 16
)

var (
	// ErrNoAuth is returned when no key file, agent or explicit auth method is available.
	ErrNoAuth = errors.New("no SSH authentication method available")
	// ErrNoHostKeyPolicy is returned when no known_hosts file is found and insecure mode is off.
	ErrNoHostKeyPolicy = errors.New("no known_hosts file found and host key checking is enabled")
	// ErrConnect is wrapped by connection failures.
	ErrConnect = errors.New("could not connect")
	// ErrUpload is wrapped by upload failures.
	ErrUpload = errors.New("upload failed")
)

// SSHConfig holds the settings shared by every connection.
type SSHConfig struct {
	User                  string
	Port                  int
	KeyFile               string // PEM private key; empty tries the agent only
	KnownHostsFile        string // empty means ~/.ssh/known_hosts
	InsecureIgnoreHostKey bool
	Parallelism           int
	ConnectTimeout        time.Duration
}

func (c *SSHConfig) defaults() {
	if c.User == "" {
		c.User = os.Getenv("USER")
	}

	if c.Port == 0 {
		c.Port = DefaultPort
	}

	if c.Parallelism <= 0 {
		c.Parallelism = DefaultParallelism
	}

	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
}

// DialFunc opens the transport connection to addr.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

var (
	_ Executor = (*SSH)(nil)
	_ Uploader = (*SSH)(nil)
)

// SSH implements Executor and Uploader over golang.org/x/crypto/ssh.
type SSH struct {
	cfg      SSHConfig
	auth     []ssh.AuthMethod
	hostKey  ssh.HostKeyCallback
	dial     DialFunc
	agentSck net.Conn
}

// Option configures an SSH executor.
type Option func(*SSH)

// WithDialer replaces the TCP dialer.
func WithDialer(d DialFunc) Option {
	return func(s *SSH) {
		s.dial = d
	}
}

// WithAuth replaces the key file and agent lookup with the given methods.
func WithAuth(methods ...ssh.AuthMethod) Option {
	return func(s *SSH) {
		s.auth = methods
	}
}

// WithHostKeyCallback replaces the known_hosts lookup.
func WithHostKeyCallback(cb ssh.HostKeyCallback) Option {
	return func(s *SSH) {
		s.hostKey = cb
	}
}

// NewSSH builds an executor. Authentication and host key checking are resolved once here.
func NewSSH(cfg SSHConfig, opts ...Option) (*SSH, error) {
	cfg.defaults()

	s := &SSH{cfg: cfg}

	for _, opt := range opts {
		opt(s)
	}

	if s.dial == nil {
		d := &net.Dialer{Timeout: cfg.ConnectTimeout}
		s.dial = d.DialContext
	}

	if s.auth == nil {
		if err := s.defaultAuth(); err != nil {
			return nil, err
		}
	}

	if s.hostKey == nil {
		cb, err := defaultHostKeyCallback(cfg)
		if err != nil {
			return nil, err
		}

		s.hostKey = cb
	}

	return s, nil
}

func (s *SSH) defaultAuth() error {
	if s.cfg.KeyFile != "" {
		key, err := os.ReadFile(s.cfg.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to read SSH key: %w", err)
		}

		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return fmt.Errorf("failed to parse SSH key: %w", err)
		}

		s.auth = append(s.auth, ssh.PublicKeys(signer))
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			s.agentSck = conn
			s.auth = append(s.auth, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	if len(s.auth) == 0 {
		return ErrNoAuth
	}

	return nil
}

func defaultHostKeyCallback(cfg SSHConfig) (ssh.HostKeyCallback, error) {
	if cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec
	}

	file := cfg.KnownHostsFile
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Join(ErrNoHostKeyPolicy, err)
		}

		file = filepath.Join(home, ".ssh", "known_hosts")
	}

	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, errors.Join(ErrNoHostKeyPolicy, err)
	}

	return cb, nil
}

// Close releases the agent connection, if any.
func (s *SSH) Close() error {
	if s.agentSck != nil {
		return s.agentSck.Close()
	}

	return nil
}

func (s *SSH) connect(ctx context.Context, host string) (*ssh.Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(s.cfg.Port))

	dctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	netConn, err := s.dial(dctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w to %s: %w", ErrConnect, addr, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            s.cfg.User,
		Auth:            s.auth,
		HostKeyCallback: s.hostKey,
		Timeout:         s.cfg.ConnectTimeout,
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, sshCfg)
	if err != nil {
		netConn.Close() //nolint:errcheck
		return nil, fmt.Errorf("%w: ssh handshake with %s: %w", ErrConnect, addr, err)
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// forEachHost runs fn for every host with at most Parallelism in flight.
// fn never returns an error to the group so one host cannot cancel the others.
func (s *SSH) forEachHost(hosts []string, fn func(i int, host string)) {
	var g errgroup.Group

	g.SetLimit(s.cfg.Parallelism)

	for i, h := range hosts {
		g.Go(func() error {
			fn(i, h)
			return nil
		})
	}

	g.Wait() //nolint:errcheck
}

// Run implements Executor.
func (s *SSH) Run(ctx context.Context, hosts []string, commands ...string) ([]HostResult, error) {
	if len(commands) == 0 {
		return nil, ErrNoCommand
	}

	results := make([]HostResult, len(hosts))

	s.forEachHost(hosts, func(i int, host string) {
		results[i] = s.runHost(ctx, host, commands)
	})

	for _, r := range results {
		ctxlog.Debug(ctx, "remote command finished",
			"host", r.Host,
			"exit_code", r.ExitCode,
			"duration", r.Duration.String(),
			"ok", r.OK(),
		)
	}

	return results, Collect(results)
}

func (s *SSH) runHost(ctx context.Context, host string, commands []string) HostResult {
	start := time.Now()
	res := HostResult{Host: host}

	client, err := s.connect(ctx, host)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)

		return res
	}
	defer client.Close() //nolint:errcheck

	var stdout, stderr bytes.Buffer

	for _, cmd := range commands {
		code, err := execCommand(ctx, client, cmd, &stdout, &stderr)
		res.ExitCode = code

		if err != nil {
			res.Err = err
			break
		}

		if code != 0 {
			res.Err = fmt.Errorf("%w: %q", ErrCommandFailed, cmd)
			break
		}
	}

	res.Stdout = stdout.Bytes()
	res.Stderr = stderr.Bytes()
	res.Duration = time.Since(start)

	return res
}

// execCommand runs one command in a new session and returns its exit status.
func execCommand(ctx context.Context, client *ssh.Client, command string, stdout, stderr *bytes.Buffer) (int, error) {
	session, err := client.NewSession()
	if err != nil {
		return -1, fmt.Errorf("could not create ssh session: %w", err)
	}
	defer session.Close() //nolint:errcheck

	session.Stdout = stdout
	session.Stderr = stderr

	done := make(chan error, 1)

	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()

		return -1, ctx.Err()
	case err := <-done:
		if err == nil {
			return 0, nil
		}

		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitStatus(), nil
		}

		return -1, fmt.Errorf("command execution failed: %w", err)
	}
}

// Upload implements Uploader.
func (s *SSH) Upload(ctx context.Context, hosts []string, content []byte, remotePath string, mode fs.FileMode) error {
	errs := make([]error, len(hosts))

	s.forEachHost(hosts, func(i int, host string) {
		if err := s.uploadHost(ctx, host, content, remotePath, mode); err != nil {
			errs[i] = &HostError{Host: host, Err: err}
		}
	})

	merr := &multierror.Error{ErrorFormat: hostErrorFormat}

	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	return merr.ErrorOrNil()
}

func (s *SSH) uploadHost(ctx context.Context, host string, content []byte, remotePath string, mode fs.FileMode) error {
	client, err := s.connect(ctx, host)
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("%w: could not create sftp client: %w", ErrUpload, err)
	}
	defer sftpClient.Close() //nolint:errcheck

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := sftpClient.MkdirAll(dir); err != nil {
			return fmt.Errorf("%w: could not create %s: %w", ErrUpload, dir, err)
		}
	}

	dst, err := sftpClient.Create(remotePath)
	if err != nil {
		return fmt.Errorf("%w: could not create remote file %s: %w", ErrUpload, remotePath, err)
	}

	if _, err := dst.Write(content); err != nil {
		dst.Close() //nolint:errcheck
		return fmt.Errorf("%w: could not write remote file %s: %w", ErrUpload, remotePath, err)
	}

	if err := dst.Close(); err != nil {
		return fmt.Errorf("%w: could not close remote file %s: %w", ErrUpload, remotePath, err)
	}

	if err := sftpClient.Chmod(remotePath, mode); err != nil {
		return fmt.Errorf("%w: could not chmod %s: %w", ErrUpload, remotePath, err)
	}

	return nil
}
