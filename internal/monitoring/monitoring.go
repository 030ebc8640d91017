// Package monitoring owns the error-monitoring sink and the best-effort
// wrapper every push-triggering call site runs through.
package monitoring

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Reporter receives unexpected failures. Implementations must not panic
// into the caller; Guard recovers if they do.
type Reporter interface {
	Report(ctx context.Context, err error, fields ...zap.Field)
}

// LogReporter reports through a zap logger. It is the default sink when no
// external monitoring service is configured.
type LogReporter struct {
	log *zap.Logger
}

func NewLogReporter(log *zap.Logger) *LogReporter {
	return &LogReporter{log: log.Named("monitoring")}
}

func (r *LogReporter) Report(_ context.Context, err error, fields ...zap.Field) {
	r.log.Error("reported error", append(fields, zap.Error(err))...)
}

// Guard runs operations best-effort: failures and panics are logged,
// forwarded to the reporter and swallowed.
type Guard struct {
	log      *zap.Logger
	reporter Reporter
	quiet    []error
}

// NewGuard builds a Guard. Errors matching any of quiet (errors.Is) are
// logged as warnings and not forwarded to the reporter.
func NewGuard(log *zap.Logger, reporter Reporter, quiet ...error) *Guard {
	return &Guard{log: log, reporter: reporter, quiet: quiet}
}

// Run executes fn under op's name and never returns its failure.
func (g *Guard) Run(ctx context.Context, op string, fn func(ctx context.Context) error, fields ...zap.Field) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("panic: %v", r)
			g.log.Error("operation panicked", append(fields, zap.String("op", op), zap.Error(err), zap.ByteString("stack", debug.Stack()))...)
			g.report(ctx, errors.Wrap(err, op), fields...)
		}
	}()

	err := fn(ctx)
	if err == nil {
		return
	}
	for _, q := range g.quiet {
		if errors.Is(err, q) {
			g.log.Warn("operation aborted", append(fields, zap.String("op", op), zap.Error(err))...)
			return
		}
	}

	g.log.Error("operation failed", append(fields, zap.String("op", op), zap.Error(err))...)
	g.report(ctx, errors.Wrap(err, op), fields...)
}

func (g *Guard) report(ctx context.Context, err error, fields ...zap.Field) {
	if g.reporter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[monitoring] reporter panicked: %v (while reporting %v)\n", r, err)
		}
	}()
	g.reporter.Report(ctx, err, fields...)
}
