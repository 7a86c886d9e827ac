// Package sink defines the contract for hardware buffer consumers and the helpers used to
// fan a frame out to several of them.
//
// A Sink must validate the buffer length against its fixed size, must not retain the
// buffer after Supply returns, and must return in bounded time. There is no timeout
// around Supply: a sink that blocks forever stalls every animation loop feeding it.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/paws/internal/component"
	"github.com/smazurov/paws/internal/metrics"
	"github.com/smazurov/paws/internal/rigerr"
)

// Sink consumes device buffers.
type Sink interface {
	component.Named
	// BufferSize reports the fixed expected buffer length. ok is false for sinks that
	// accept any length.
	BufferSize() (size int, ok bool)
	Supply(ctx context.Context, buf []byte) error
}

// Initializer is implemented by sinks that need setup before the first Supply.
type Initializer interface {
	Init(ctx context.Context) error
}

// Closer is implemented by sinks that hold hardware handles.
type Closer interface {
	Close() error
}

// CheckSize returns a SIZE_MISMATCH error if buf does not fit s.
func CheckSize(s Sink, buf []byte) error {
	if size, ok := s.BufferSize(); ok && size != len(buf) {
		return rigerr.SizeMismatch(s.Name(), size, len(buf))
	}
	return nil
}

// Supply validates buf against s, hands it over and records the outcome.
func Supply(ctx context.Context, s Sink, buf []byte) error {
	if err := CheckSize(s, buf); err != nil {
		metrics.ObserveSupply(s.Name(), 0, err)
		return err
	}

	start := time.Now()
	err := s.Supply(ctx, buf)
	metrics.ObserveSupply(s.Name(), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("supply %s: %w", s.Name(), err)
	}
	return nil
}

// Delivery pairs a sink with the buffer it should receive.
type Delivery struct {
	Sink   Sink
	Buffer []byte
}

// SupplyAll delivers every buffer concurrently and waits for all of them.
// Errors from individual sinks are joined.
func SupplyAll(ctx context.Context, deliveries ...Delivery) error {
	switch len(deliveries) {
	case 0:
		return nil
	case 1:
		return Supply(ctx, deliveries[0].Sink, deliveries[0].Buffer)
	}

	errs := make([]error, len(deliveries))
	var wg sync.WaitGroup
	for i, d := range deliveries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = Supply(ctx, d.Sink, d.Buffer)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Init runs Init on every sink implementing Initializer, concurrently.
func Init(ctx context.Context, sinks ...Sink) error {
	errs := make([]error, len(sinks))
	var wg sync.WaitGroup
	for i, s := range sinks {
		initializer, ok := s.(Initializer)
		if !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := initializer.Init(ctx); err != nil {
				errs[i] = fmt.Errorf("init %s: %w", s.Name(), err)
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// CloseAll closes every sink implementing Closer.
func CloseAll(sinks ...Sink) error {
	var errs []error
	for _, s := range sinks {
		if c, ok := s.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
