package testlog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/log"
)

func TestCaptureLogger(t *testing.T) {
	logger, logs := CaptureLogger(t, log.LevelInfo)
	child := logger.New("id", "req-1")
	child.Info("Approved", "tx", "0x01")
	logger.Debug("Hidden")
	logger.Warn("Stale state")

	rec := logs.FindLog("Approved")
	require.NotNil(t, rec)
	v, ok := rec.AttrValue("tx")
	require.True(t, ok)
	require.Equal(t, "0x01", v)
	v, ok = rec.AttrValue("id")
	require.True(t, ok)
	require.Equal(t, "req-1", v)

	require.Nil(t, logs.FindLog("Hidden"))
	require.Len(t, logs.FindLogs(log.LevelWarn), 1)

	logs.Clear()
	require.Nil(t, logs.FindLog("Approved"))
}
