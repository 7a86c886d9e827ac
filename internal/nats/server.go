package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

const (
	defaultServerPort = 4222
	defaultServerHost = "127.0.0.1"
	// Floor for the payload limit; JSON commands and events are small.
	minPayload = 64 * 1024
	// Headroom for message headers on a draw message.
	frameEnvelope = 1024
)

// ServerOptions configures the embedded NATS server.
type ServerOptions struct {
	Port int
	Host string
	Name string
	// MaxFrame is the largest frame published on a draw subject. The payload limit is
	// raised to fit it.
	MaxFrame int
	Logger   *slog.Logger
}

// Server is an embedded broker, so a rig can be driven over NATS without external
// infrastructure.
type Server struct {
	opts   ServerOptions
	logger *slog.Logger
	ns     *server.Server
}

// NewServer creates an embedded server. Nothing listens until Start.
func NewServer(opts ServerOptions) *Server {
	if opts.Port == 0 {
		opts.Port = defaultServerPort
	}
	if opts.Host == "" {
		opts.Host = defaultServerHost
	}
	if opts.Name == "" {
		opts.Name = "paws"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{opts: opts, logger: logger.With("component", "nats-server")}
}

// MaxPayload returns the payload limit the server enforces.
func (s *Server) MaxPayload() int32 {
	return int32(max(s.opts.MaxFrame+frameEnvelope, minPayload))
}

// Start runs the server and waits until it accepts connections.
func (s *Server) Start() error {
	ns, err := server.NewServer(&server.Options{
		Host:       s.opts.Host,
		Port:       s.opts.Port,
		ServerName: s.opts.Name,
		NoSigs:     true,
		MaxPayload: s.MaxPayload(),
	})
	if err != nil {
		return fmt.Errorf("create NATS server: %w", err)
	}
	ns.SetLogger(slogAdapter{s.logger}, s.logger.Enabled(context.Background(), slog.LevelDebug), false)

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return errors.New("NATS server not ready after 5s")
	}

	s.ns = ns
	s.logger.Info("NATS server started", "url", s.ClientURL(), "max_payload", s.MaxPayload())
	return nil
}

// Stop shuts the server down and waits for it to exit.
func (s *Server) Stop() {
	if s.ns == nil {
		return
	}
	s.logger.Info("Stopping NATS server", "clients", s.ns.NumClients())
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	s.ns = nil
}

// ClientURL returns the URL clients connect to. It is known before Start.
func (s *Server) ClientURL() string {
	if s.ns != nil {
		return s.ns.ClientURL()
	}
	return "nats://" + net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// IsRunning reports whether the server accepts connections.
func (s *Server) IsRunning() bool {
	return s.ns != nil && s.ns.Running()
}

// slogAdapter routes the broker's own log lines into the nats module logger.
type slogAdapter struct{ logger *slog.Logger }

func (a slogAdapter) Noticef(format string, v ...any) { a.logger.Debug(fmt.Sprintf(format, v...)) }
func (a slogAdapter) Warnf(format string, v ...any)   { a.logger.Warn(fmt.Sprintf(format, v...)) }
func (a slogAdapter) Fatalf(format string, v ...any)  { a.logger.Error(fmt.Sprintf(format, v...)) }
func (a slogAdapter) Errorf(format string, v ...any)  { a.logger.Error(fmt.Sprintf(format, v...)) }
func (a slogAdapter) Debugf(format string, v ...any)  { a.logger.Debug(fmt.Sprintf(format, v...)) }
func (a slogAdapter) Tracef(format string, v ...any)  { a.logger.Debug(fmt.Sprintf(format, v...)) }
