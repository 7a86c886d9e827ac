// Package spistrip drives a WS281x (NRZ) LED strip wired to an SPI port.
package spistrip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/smazurov/paws/internal/component"
	"github.com/smazurov/paws/internal/logging"
	"github.com/smazurov/paws/internal/sink"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"
)

// Options configures the strip.
type Options struct {
	// Port is the SPI port name, e.g. "/dev/spidev0.0". Empty picks the first port.
	Port string
	// Pixels is the number of LEDs on the strip.
	Pixels int
	// Freq is the NRZ bit rate. Defaults to 800kHz.
	Freq physic.Frequency
}

// ErrNotInitialized is returned by Supply before Init succeeded.
var ErrNotInitialized = errors.New("spi strip not initialized")

// Strip is a fixed-size sink of Pixels*3 RGB bytes.
type Strip struct {
	component.Identity
	opts   Options
	logger *slog.Logger

	mu   sync.Mutex
	port spi.Port
	dev  *nrzled.Dev
}

var _ sink.Sink = (*Strip)(nil)

// New creates a strip that opens its SPI port in Init.
func New(name string, opts Options) (*Strip, error) {
	if opts.Pixels <= 0 {
		return nil, fmt.Errorf("spi strip %s: invalid pixel count %d", name, opts.Pixels)
	}
	if opts.Freq == 0 {
		opts.Freq = 800 * physic.KiloHertz
	}
	return &Strip{
		Identity: component.NewIdentity(name),
		opts:     opts,
		logger:   logging.GetLogger("sinks"),
	}, nil
}

// NewWithPort creates a strip on an already opened port. Init is not needed.
func NewWithPort(name string, port spi.Port, opts Options) (*Strip, error) {
	s, err := New(name, opts)
	if err != nil {
		return nil, err
	}
	if err := s.connect(port); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Strip) connect(port spi.Port) error {
	dev, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: s.opts.Pixels,
		Channels:  3,
		Freq:      s.opts.Freq,
	})
	if err != nil {
		return fmt.Errorf("spi strip %s: %w", s.Name(), err)
	}

	s.mu.Lock()
	s.port, s.dev = port, dev
	s.mu.Unlock()
	return nil
}

// BufferSize implements sink.Sink.
func (s *Strip) BufferSize() (int, bool) {
	return s.opts.Pixels * 3, true
}

// Init loads the host drivers and opens the SPI port.
func (s *Strip) Init(_ context.Context) error {
	s.mu.Lock()
	ready := s.dev != nil
	s.mu.Unlock()
	if ready {
		return nil
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}
	port, err := spireg.Open(s.opts.Port)
	if err != nil {
		return fmt.Errorf("open spi port %q: %w", s.opts.Port, err)
	}
	if err := s.connect(port); err != nil {
		_ = port.Close()
		return err
	}
	s.logger.Info("SPI strip ready", "sink", s.Name(), "port", port.String(), "pixels", s.opts.Pixels)
	return nil
}

// Supply writes one RGB frame to the strip.
func (s *Strip) Supply(_ context.Context, buf []byte) error {
	if err := sink.CheckSize(s, buf); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return ErrNotInitialized
	}
	if _, err := s.dev.Write(buf); err != nil {
		return fmt.Errorf("write strip: %w", err)
	}
	return nil
}

// Close blanks the strip and releases the port.
func (s *Strip) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil
	}

	errs := []error{s.dev.Halt()}
	if c, ok := s.port.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	s.dev, s.port = nil, nil
	return errors.Join(errs...)
}
