package logger

import (
	"path/filepath"
	"testing"

	"social-app/pkg/testutil"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCallerPointsAtLogSite(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := newWithCore(core)

	l.Info("printf %d", 1)
	l.Zap().Info("structured", zap.Int("n", 2))
	l.Zap().Named("chat").Warn("named")

	entries := logs.AllUntimed()
	testutil.Assert(t, 3, len(entries), "entries")
	for _, e := range entries {
		testutil.IsTrue(t, e.Caller.Defined, "caller recorded")
		testutil.Assert(t, "logger_test.go", filepath.Base(e.Caller.File), e.Message)
	}
}

func TestLevelFromString(t *testing.T) {
	testutil.Assert(t, zapcore.DebugLevel, levelFromString("debug"), "debug")
	testutil.Assert(t, zapcore.WarnLevel, levelFromString("warning"), "warning")
	testutil.Assert(t, zapcore.InfoLevel, levelFromString("bogus"), "default")
}
