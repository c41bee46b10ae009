package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig holds what is needed to reach the chat export host.
type SSHConfig struct {
	Host       string
	User       string
	Password   string
	KeyPath    string
	KnownHosts string
	// InsecureHostKey accepts any host key when no KnownHosts file is set.
	InsecureHostKey bool
	Timeout         time.Duration
}

// DialFunc opens an SFTP session. The returned closer ends it.
type DialFunc func(ctx context.Context) (*sftp.Client, io.Closer, error)

// SyncStats counts one pass of Syncer.SyncOnce.
type SyncStats struct {
	Folders    int
	Downloaded int
	Skipped    int
}

// Syncer mirrors the remote chat export folder into a local directory.
// Files already present with the same size are not downloaded again.
type Syncer struct {
	dial      DialFunc
	remoteDir string
	localDir  string
	log       *zap.Logger
}

func NewSyncer(dial DialFunc, remoteDir, localDir string, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{dial: dial, remoteDir: remoteDir, localDir: localDir, log: logger.Named("inbox.sftp")}
}

// ErrNoHostKeyCheck is returned when neither a known hosts file nor the
// insecure opt-in is configured.
var ErrNoHostKeyCheck = errors.New("ssh: no known hosts file configured")

func hostKeyCallback(cfg SSHConfig, logger *zap.Logger) (ssh.HostKeyCallback, error) {
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		return cb, nil
	}
	if !cfg.InsecureHostKey {
		return nil, ErrNoHostKeyCheck
	}
	logger.Warn("host key is not verified", zap.String("host", cfg.Host))
	return ssh.InsecureIgnoreHostKey(), nil
}

// SSHDialer returns a DialFunc connecting with cfg.
func SSHDialer(cfg SSHConfig, logger *zap.Logger) (DialFunc, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var auth []ssh.AuthMethod
	if cfg.KeyPath != "" {
		key, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ssh key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("ssh: no password or key configured")
	}

	hostKeys, err := hostKeyCallback(cfg, logger)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	addr := cfg.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}
	clientCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}

	return func(ctx context.Context) (*sftp.Client, io.Closer, error) {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to dial %s: %w", addr, err)
		}
		c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
		}
		client := ssh.NewClient(c, chans, reqs)
		sc, err := sftp.NewClient(client)
		if err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to start sftp session: %w", err)
		}
		return sc, client, nil
	}, nil
}

// Run syncs every interval until ctx is cancelled. A failed pass is logged
// and retried on the next tick.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.SyncOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("sync failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// SyncOnce copies new remote files into the local directory, keeping the
// chat folder structure.
func (s *Syncer) SyncOnce(ctx context.Context) (SyncStats, error) {
	client, closer, err := s.dial(ctx)
	if err != nil {
		return SyncStats{}, err
	}
	defer closer.Close()
	defer client.Close()

	var stats SyncStats
	if err := s.syncDir(ctx, client, s.remoteDir, s.localDir, &stats); err != nil {
		return stats, err
	}
	if stats.Downloaded > 0 {
		s.log.Info("downloaded chat files", zap.Int("files", stats.Downloaded), zap.Int("folders", stats.Folders))
	}
	return stats, nil
}

func (s *Syncer) syncDir(ctx context.Context, client *sftp.Client, remoteDir, localDir string, stats *SyncStats) error {
	entries, err := client.ReadDir(remoteDir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", remoteDir, err)
	}
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		remote := path.Join(remoteDir, e.Name())
		local := filepath.Join(localDir, e.Name())
		if e.IsDir() {
			stats.Folders++
			if err := s.syncDir(ctx, client, remote, local, stats); err != nil {
				return err
			}
			continue
		}
		if info, err := os.Stat(local); err == nil && info.Size() == e.Size() {
			stats.Skipped++
			continue
		}
		if err := download(client, remote, local); err != nil {
			return err
		}
		s.log.Debug("downloaded", zap.String("file", remote))
		stats.Downloaded++
	}
	return nil
}

func download(client *sftp.Client, remote, local string) error {
	src, err := client.Open(remote)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", remote, err)
	}
	defer src.Close()

	tmp := local + ".part"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to download %s: %w", remote, err)
	}
	if err := os.Rename(tmp, local); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
