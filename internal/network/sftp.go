package network

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DialTimeout bounds the TCP connect and SSH handshake
const DialTimeout = 10 * time.Second

// RemoteConfig holds the configuration for remote connection
type RemoteConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	KeyFile    string
	KnownHosts string
}

// Remote gives access to firmware files on a host reachable over SFTP
type Remote struct {
	client *sftp.Client
	conn   io.Closer
}

// Dial connects to the remote host and starts an SFTP session
func Dial(config RemoteConfig) (*Remote, error) {
	if config.Host == "" {
		return nil, errors.New("remote host not configured")
	}

	var authMethods []ssh.AuthMethod

	if config.Password != "" {
		authMethods = append(authMethods, ssh.Password(config.Password))
	}

	if config.KeyFile != "" {
		key, err := os.ReadFile(config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read private key: %w", err)
		}

		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("unable to parse private key: %w", err)
		}

		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no authentication methods provided")
	}

	hostKeyCallback, err := hostKeyCallback(config.KnownHosts)
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            config.Username,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         DialTimeout,
	}

	port := config.Port
	if port == 0 {
		port = 22
	}

	// Connect to remote host
	addr := net.JoinHostPort(config.Host, strconv.Itoa(port))
	sshClient, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to remote host: %w", err)
	}

	// Create SFTP client
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}

	return &Remote{
		client: sftpClient,
		conn:   sshClient,
	}, nil
}

// NewRemote wraps an established SFTP session
func NewRemote(client *sftp.Client) *Remote {
	return &Remote{client: client}
}

func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to load known hosts: %w", err)
	}
	return cb, nil
}

// Close closes the SFTP session and the SSH connection under it. Both are
// always closed; the first error is returned.
func (r *Remote) Close() error {
	err := r.client.Close()
	if r.conn != nil {
		if connErr := r.conn.Close(); err == nil {
			err = connErr
		}
	}
	return err
}

// Open opens a remote firmware file positioned at offset 0. A writable file
// is opened read+write for in-place header repair.
func (r *Remote) Open(path string, writable bool) (*sftp.File, error) {
	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR
	}
	f, err := r.client.OpenFile(path, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote file %s: %w", path, err)
	}
	return f, nil
}

// Size returns the size of a remote file
func (r *Remote) Size(path string) (int64, error) {
	info, err := r.client.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat remote file %s: %w", path, err)
	}
	return info.Size(), nil
}

// Backup copies a remote file to path+suffix on the same host. An existing
// backup is kept as is and created is false.
func (r *Remote) Backup(path, suffix string) (backup string, created bool, err error) {
	backup = path + suffix
	if info, err := r.client.Stat(backup); err == nil {
		if !info.Mode().IsRegular() {
			return "", false, fmt.Errorf("remote backup %s is not a regular file", backup)
		}
		return backup, false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", false, fmt.Errorf("failed to stat remote backup: %w", err)
	}

	src, err := r.client.Open(path)
	if err != nil {
		return "", false, fmt.Errorf("failed to open remote file: %w", err)
	}
	defer src.Close()

	dst, err := r.client.OpenFile(backup, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
	if err != nil {
		return "", false, fmt.Errorf("failed to create remote backup: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = r.client.Remove(backup)
		return "", false, fmt.Errorf("failed to copy file contents: %w", err)
	}

	if err := dst.Close(); err != nil {
		return "", false, fmt.Errorf("failed to close remote backup: %w", err)
	}

	return backup, true, nil
}
