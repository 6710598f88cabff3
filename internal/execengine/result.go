package execengine

import (
	"time"

	"github.com/smilemakc/pflow/internal/errextract"
)

// Result is what one Executor.Execute attempt produces (spec §4.F).
type Result struct {
	Success    bool
	Action     string
	Errors     []errextract.Record
	OutputData map[string]any
	NodeCount  int
	Duration   time.Duration
}
