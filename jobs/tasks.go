package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSummaryWarmup fills the meal summary cache for recently active users.
	TaskSummaryWarmup = "meals:summary_warmup"
)

// SummaryWarmupPayload selects the trailing window, in days, to warm.
type SummaryWarmupPayload struct {
	Days int `json:"days"`
}

// NewSummaryWarmupTask constructs the warm-up task.
func NewSummaryWarmupTask(days int) (*asynq.Task, error) {
	if days < 1 {
		return nil, fmt.Errorf("jobs: summary warmup days must be positive, got %d", days)
	}
	data, err := json.Marshal(SummaryWarmupPayload{Days: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSummaryWarmup, data), nil
}
