package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

type journalEntry struct {
	message  string
	priority journal.Priority
	fields   map[string]string
}

func captureJournal(t *testing.T) *[]journalEntry {
	t.Helper()
	var entries []journalEntry
	prev := journalSend
	journalSend = func(msg string, p journal.Priority, fields map[string]string) error {
		entries = append(entries, journalEntry{msg, p, fields})
		return nil
	}
	t.Cleanup(func() { journalSend = prev })
	return &entries
}

func TestJournalHandlerFields(t *testing.T) {
	entries := captureJournal(t)

	logger := slog.New(NewJournalHandler(slog.LevelDebug)).With("module", "drawer")
	logger.WithGroup("frame").Warn("Fragment overflow",
		"cursor", 12,
		"fps", 29.5,
		slog.Group("sink", "name", "left-eye"),
		"took", 3*time.Millisecond,
		"bad-key", true,
	)

	if len(*entries) != 1 {
		t.Fatalf("entries = %d", len(*entries))
	}
	e := (*entries)[0]
	if e.message != "Fragment overflow" || e.priority != journal.PriWarning {
		t.Errorf("entry = %q priority %d", e.message, e.priority)
	}
	want := map[string]string{
		"SYSLOG_IDENTIFIER": SyslogIdentifier,
		"MODULE":            "drawer",
		"FRAME_CURSOR":      "12",
		"FRAME_FPS":         "29.5",
		"FRAME_SINK_NAME":   "left-eye",
		"FRAME_TOOK":        "3ms",
		"FRAME_BAD_KEY":     "true",
	}
	for k, v := range want {
		if e.fields[k] != v {
			t.Errorf("%s = %q, want %q", k, e.fields[k], v)
		}
	}
}

func TestJournalHandlerLevel(t *testing.T) {
	entries := captureJournal(t)

	var level slog.LevelVar
	level.Set(slog.LevelWarn)
	h := NewJournalHandler(&level)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be filtered at warn")
	}

	slog.New(h).Error("Scheduler fault")
	if len(*entries) != 1 || (*entries)[0].priority != journal.PriErr {
		t.Errorf("entries = %+v", *entries)
	}
}

func TestJournalKey(t *testing.T) {
	tests := map[string]string{
		"remote_addr": "REMOTE_ADDR",
		"rig.file":    "RIG_FILE",
		"_private":    "PRIVATE",
		"Mode2":       "MODE2",
	}
	for in, want := range tests {
		if got := journalKey(in); got != want {
			t.Errorf("journalKey(%q) = %q, want %q", in, got, want)
		}
	}
}
