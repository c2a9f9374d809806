// Package sshadmin implements an SSH admin shell: a public-key
// authenticated REPL exposing list_sites, get_site_config, set_site_config,
// whoami, help and clear over SSH. It is written directly against
// golang.org/x/crypto/ssh's idiomatic server API, paired with
// golang.org/x/term for line editing and echo.
package sshadmin

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/evilham/prometheus-adlermanager/internal/sites"
)

// Server accepts SSH connections and serves the admin shell to any client
// whose public key is on file under KeysDir.
type Server struct {
	Addr    string
	KeysDir string
	Sites   *sites.Manager
	Logger  *slog.Logger

	keys   *KeyDirectory
	config *ssh.ServerConfig

	mu       sync.Mutex
	listener net.Listener
}

// Listen prepares the server's host key and public-key checker. It must be
// called before Serve.
func (s *Server) Listen() error {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	s.keys = NewKeyDirectory(s.KeysDir)

	hostKey, err := s.keys.HostKey()
	if err != nil {
		return fmt.Errorf("sshadmin: loading host key: %w", err)
	}

	config := &ssh.ServerConfig{
		PublicKeyCallback: s.checkPublicKey,
	}
	config.AddHostKey(hostKey)
	s.config = config

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("sshadmin: listening on %s: %w", s.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

func (s *Server) checkPublicKey(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
	username := conn.User()
	authorized, err := s.keys.AuthorizedKeys(username)
	if err != nil {
		s.Logger.Error("sshadmin: reading authorized keys", "user", username, "error", err)
		return nil, fmt.Errorf("internal error")
	}
	for _, candidate := range authorized {
		if ssh.KeysEqual(candidate, key) {
			return &ssh.Permissions{Extensions: map[string]string{"username": username}}, nil
		}
	}
	return nil, fmt.Errorf("unknown public key for %q", username)
}

// Serve accepts connections until ctx is cancelled or the listener closes.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("sshadmin: accept: %w", err)
			}
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(nc net.Conn) {
	sconn, chans, reqs, err := ssh.NewServerConn(nc, s.config)
	if err != nil {
		s.Logger.Debug("sshadmin: handshake failed", "remote", nc.RemoteAddr(), "error", err)
		return
	}
	defer sconn.Close()

	username := sconn.Permissions.Extensions["username"]
	s.Logger.Info("sshadmin: session opened", "user", username, "remote", sconn.RemoteAddr())
	defer s.Logger.Info("sshadmin: session closed", "user", username, "remote", sconn.RemoteAddr())

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			s.Logger.Debug("sshadmin: channel accept failed", "error", err)
			continue
		}
		go s.serveSession(username, channel, requests)
	}
}
