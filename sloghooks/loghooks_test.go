package sloghooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newJSON(t *testing.T) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ln := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if ln == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(ln), &m))
		out = append(out, m)
	}
	return out
}

func TestHitSampling(t *testing.T) {
	l, buf := newJSON(t)
	h := New(l, Options{HitEvery: 3})
	for range 9 {
		h.Hit("user:1")
	}
	require.Len(t, lines(t, buf), 3)
}

func TestDefaultRedaction(t *testing.T) {
	l, buf := newJSON(t)
	h := New(l, Options{})
	h.WriteRejected("user:secret", errors.New("full"))

	got := lines(t, buf)
	require.Len(t, got, 1)
	require.Equal(t, "asidecache.write_rejected", got[0]["msg"])
	key, _ := got[0]["key"].(string)
	require.Len(t, key, 16)
	require.NotContains(t, buf.String(), "secret")
}

func TestCustomRedactAndLevels(t *testing.T) {
	l, buf := newJSON(t)
	h := New(l, Options{Redact: func(k string) string { return "k:" + k }})

	h.DecodeFailed("a", errors.New("bad"))
	h.BatchFlushed(4, nil)
	h.BatchFlushed(2, errors.New("down"))
	h.RetryScheduled("Get", 1, 2*time.Millisecond, errors.New("eof"))

	got := lines(t, buf)
	require.Len(t, got, 4)
	require.Equal(t, "ERROR", got[0]["level"])
	require.Equal(t, "k:a", got[0]["key"])
	require.Equal(t, "asidecache.batch_flushed", got[1]["msg"])
	require.Equal(t, "asidecache.batch_flush_failed", got[2]["msg"])
	require.Equal(t, "Get", got[3]["op"])
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	require.NotPanics(t, func() {
		h.Hit("a")
		h.ProducerFailed("a", errors.New("x"))
	})
}
