// Package testlog provides a log handler for unit tests.
package testlog

import (
	"bytes"
	"log/slog"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

var useColorInTestLog = os.Getenv("BAG_TESTLOG_DISABLE_COLOR") != "true"

// Testing interface to log to. Some functions are marked as Helper function to log the call site accurately.
// Standard Go testing.TB implements this.
type Testing interface {
	Logf(format string, args ...any)
	Helper()
	Name() string
	Cleanup(func())
}

// testWriter forwards each complete log line to t.Logf.
// Writes after the test finished are dropped, background loops may still be winding down.
type testWriter struct {
	t    Testing
	mu   sync.Mutex
	buf  bytes.Buffer
	done bool
}

func newTestWriter(t Testing) *testWriter {
	w := &testWriter{t: t}
	t.Cleanup(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.done = true
	})
	return w
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return len(p), nil
	}
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// incomplete line, keep it for the next write
			w.buf.Write(line)
			return len(p), nil
		}
		w.t.Logf("%s", bytes.TrimRight(line, "\n"))
	}
}

// Logger returns a logger which logs to the unit test log of t.
func Logger(t Testing, level slog.Level) log.Logger {
	return log.NewLogger(handler(t, level))
}

func handler(t Testing, level slog.Level) slog.Handler {
	return log.NewTerminalHandlerWithLevel(newTestWriter(t), level, useColorInTestLog)
}
