package sink

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/paws/internal/component"
	"github.com/smazurov/paws/internal/rigerr"
)

func TestSupplyRejectsWrongSize(t *testing.T) {
	r := NewRecorder("strip", 6)

	err := Supply(context.Background(), r, make([]byte, 5))
	if !errors.Is(err, rigerr.ErrSizeMismatch) {
		t.Fatalf("expected size mismatch, got %v", err)
	}
	if r.Count() != 0 {
		t.Error("mismatched buffer must not reach the sink")
	}
}

func TestSupplyUnconstrained(t *testing.T) {
	r := NewRecorder("console", -1)
	if _, ok := r.BufferSize(); ok {
		t.Fatal("negative size should be unconstrained")
	}

	for _, n := range []int{0, 3, 300} {
		if err := Supply(context.Background(), r, make([]byte, n)); err != nil {
			t.Errorf("Supply(%d bytes) = %v", n, err)
		}
	}
}

func TestRecorderCopiesBuffer(t *testing.T) {
	r := NewRecorder("strip", 3)
	buf := []byte{1, 2, 3}

	if err := r.Supply(context.Background(), buf); err != nil {
		t.Fatal(err)
	}
	buf[0] = 9

	last, _ := r.Last()
	if !bytes.Equal(last, []byte{1, 2, 3}) {
		t.Errorf("recorder retained caller storage: %v", last)
	}
}

func TestRecorderHistoryLimit(t *testing.T) {
	r := NewRecorder("strip", 1, WithHistory(2))
	for i := range 5 {
		_ = r.Supply(context.Background(), []byte{byte(i)})
	}

	frames := r.Frames()
	if len(frames) != 2 || frames[0][0] != 3 || frames[1][0] != 4 {
		t.Errorf("frames = %v, want [[3] [4]]", frames)
	}
}

type slowSink struct {
	component.Identity
	delay time.Duration
	mu    *sync.Mutex
	order *[]string
}

func (s slowSink) BufferSize() (int, bool) { return 0, false }

func (s slowSink) Supply(_ context.Context, _ []byte) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	*s.order = append(*s.order, s.Name())
	s.mu.Unlock()
	return nil
}

func TestSupplyAllRunsConcurrently(t *testing.T) {
	var mu sync.Mutex
	var order []string
	a := slowSink{component.NewIdentity("a"), 60 * time.Millisecond, &mu, &order}
	b := slowSink{component.NewIdentity("b"), 10 * time.Millisecond, &mu, &order}

	start := time.Now()
	err := SupplyAll(context.Background(), Delivery{a, nil}, Delivery{b, nil})
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 110*time.Millisecond {
		t.Errorf("fan-out looks serial, took %v", elapsed)
	}
	// All deliveries completed before SupplyAll returned.
	if !slices.Equal(order, []string{"b", "a"}) {
		t.Errorf("completion order = %v", order)
	}
}

func TestSupplyAllJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := NewRecorder("ok", 1)
	bad := NewRecorder("bad", 1, WithFailure(boom))

	err := SupplyAll(context.Background(),
		Delivery{ok, []byte{1}},
		Delivery{bad, []byte{2}},
	)
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to contain boom, got %v", err)
	}
	if ok.Count() != 1 {
		t.Error("healthy sink should still receive its buffer")
	}
}

func TestSetOrderAndTotal(t *testing.T) {
	a := NewRecorder("a", 10)
	b := NewRecorder("b", 20)
	c := NewRecorder("c", -1)
	set := NewSet(a, b, c)

	if got := set.Names(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Names() = %v", got)
	}
	if got := TotalSize(set.List()...); got != 30 {
		t.Errorf("TotalSize = %d, want 30", got)
	}
	if _, found := set.Get("b"); !found {
		t.Error("Get(b) should succeed")
	}

	var nilSet *Set
	if nilSet.Len() != 0 || nilSet.List() != nil {
		t.Error("nil set should behave as empty")
	}
}
