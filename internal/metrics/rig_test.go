package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFPSCache(t *testing.T) {
	DeleteFPS("loop-a")

	if _, ok := GetFPS()["loop-a"]; ok {
		t.Fatal("expected no entry before SetFPS")
	}

	SetFPS("loop-a", 29.5)
	fps := GetFPS()
	if fps["loop-a"] != 29.5 {
		t.Errorf("fps = %v, want 29.5", fps["loop-a"])
	}

	// Returned map is a copy
	fps["loop-a"] = 1
	if GetFPS()["loop-a"] != 29.5 {
		t.Error("cache was modified through returned map")
	}

	if got := testutil.ToFloat64(schedulerFPS.WithLabelValues("loop-a")); got != 29.5 {
		t.Errorf("gauge = %v, want 29.5", got)
	}

	DeleteFPS("loop-a")
	if _, ok := GetFPS()["loop-a"]; ok {
		t.Error("expected entry to be deleted")
	}
}

func TestRecordModeSwitch(t *testing.T) {
	before := testutil.ToFloat64(modeSwitches)

	RecordModeSwitch("", "idle")
	RecordModeSwitch("idle", "pixel")

	if got := testutil.ToFloat64(modeSwitches) - before; got != 2 {
		t.Errorf("mode switches delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(activeMode.WithLabelValues("idle")); got != 0 {
		t.Errorf("idle active = %v, want 0", got)
	}
	if got := testutil.ToFloat64(activeMode.WithLabelValues("pixel")); got != 1 {
		t.Errorf("pixel active = %v, want 1", got)
	}
}

func TestObserveSupplyCountsErrors(t *testing.T) {
	c := sinkSupplyErrors.WithLabelValues("test-sink")
	before := testutil.ToFloat64(c)

	ObserveSupply("test-sink", time.Millisecond, nil)
	ObserveSupply("test-sink", time.Millisecond, errors.New("write failed"))

	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("errors delta = %v, want 1", got)
	}
}

func TestConcurrentFrameObservation(t *testing.T) {
	c := schedulerFrames.WithLabelValues("concurrent")
	before := testutil.ToFloat64(c)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				ObserveFrame("concurrent", time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(c) - before; got != 1000 {
		t.Errorf("frames delta = %v, want 1000", got)
	}
}
