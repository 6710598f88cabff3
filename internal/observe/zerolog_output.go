package observe

import (
	"time"

	"github.com/rs/zerolog"
)

// ZerologOutput implements Output atop a zerolog.Logger, grounded on the
// teacher's internal/infrastructure/logger conventions (structured,
// level-appropriate fields rather than formatted strings).
type ZerologOutput struct {
	Log zerolog.Logger
}

// NewZerologOutput wraps log as an Output.
func NewZerologOutput(log zerolog.Logger) *ZerologOutput {
	return &ZerologOutput{Log: log}
}

func (o *ZerologOutput) ShowProgress(msg string, isError bool) {
	if isError {
		o.Log.Error().Msg(msg)
		return
	}
	o.Log.Info().Msg(msg)
}

func (o *ZerologOutput) ShowNode(nodeID string, status NodeStatus, duration time.Duration) {
	ev := o.Log.Info()
	if status == NodeStatusError {
		ev = o.Log.Warn()
	}
	ev.Str("node_id", nodeID).
		Str("status", string(status)).
		Dur("duration", duration).
		Msg("node status")
}
