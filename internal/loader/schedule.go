package loader

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/leapstack-labs/dagforge/pkg/core"
)

// orchestratorPresets are schedule presets the orchestrator understands
// but cron does not.
var orchestratorPresets = map[string]bool{
	"@once":       true,
	"@continuous": true,
	"@quarterly":  true,
}

// validateSchedule accepts a standard 5-field cron expression, a cron
// descriptor such as @daily or @every 1h, or an orchestrator preset.
// An empty schedule is reported by PipelineConfig.Validate.
func validateSchedule(schedule string) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" || orchestratorPresets[schedule] {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return core.Invalid("schedule_interval", fmt.Sprintf("%q: %v", schedule, err))
	}
	return nil
}
