package commands

import (
	"context"
	"time"

	command "github.com/goliatone/go-command"
	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

// TelemetryStatus is the outcome bucket of one execution.
type TelemetryStatus string

const (
	TelemetryStatusSuccess      TelemetryStatus = "success"
	TelemetryStatusFailed       TelemetryStatus = "failed"
	TelemetryStatusContextError TelemetryStatus = "context_error"
)

// TelemetryInfo is handed to telemetry once the command function returns.
// Fields already carries the command type, the operation and any message
// fields such as site_id.
type TelemetryInfo struct {
	Command   string
	Operation string
	Fields    map[string]any
	Duration  time.Duration
	Error     error
	Status    TelemetryStatus
	Logger    interfaces.Logger
}

type Telemetry[T command.Message] func(ctx context.Context, msg T, info TelemetryInfo)

// DefaultTelemetry writes one log line per execution. Failures are logged at
// error level, successes at info.
func DefaultTelemetry[T command.Message](logger interfaces.Logger) Telemetry[T] {
	logger = logging.Ensure(logger)
	return func(ctx context.Context, _ T, info TelemetryInfo) {
		entry := logging.WithFields(logging.ForContext(logger, ctx), info.Fields)
		elapsed := info.Duration.Milliseconds()
		if info.Status == TelemetryStatusSuccess {
			entry.Info(statusMessage(info.Status), "duration_ms", elapsed)
			return
		}
		entry.Error(statusMessage(info.Status), "duration_ms", elapsed, "error", info.Error)
	}
}

func statusMessage(status TelemetryStatus) string {
	return "command.execute." + string(status)
}
