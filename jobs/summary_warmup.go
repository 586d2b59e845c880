package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/caltrack/caltrack/internal/jobs"
	"github.com/caltrack/caltrack/internal/meals"
)

// SummaryWarmer is the slice of the meal service the warm-up needs.
type SummaryWarmer interface {
	ActiveUsers(ctx context.Context, days int) ([]string, error)
	Summary(ctx context.Context, userID string, from, to int64) (meals.Summary, error)
}

// SummaryWarmupJob pre-populates the summary cache for users who logged
// meals inside the warm-up window.
type SummaryWarmupJob struct {
	Meals   SummaryWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSummaryWarmupJob wires dependencies for the warm-up handler.
func NewSummaryWarmupJob(mealsSvc SummaryWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SummaryWarmupJob {
	return &SummaryWarmupJob{
		Meals:   mealsSvc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes summary warm-up tasks.
func (j *SummaryWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Meals == nil {
		return errors.New("summary warmup: handler not configured")
	}
	var payload SummaryWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.Days < 1 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskSummaryWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("days", payload.Days))
	logger.Info("starting summary warmup")

	userIDs, err := j.Meals.ActiveUsers(ctx, payload.Days)
	if err != nil {
		logger.Error("load active users", slog.Any("error", err))
		return err
	}
	if len(userIDs) == 0 {
		logger.Info("no active users to warm")
		return nil
	}

	start := j.now()
	from, to := meals.DefaultWindow(start, payload.Days)
	var errs []error
	warmed := 0
	for _, userID := range userIDs {
		if err := j.warmUser(ctx, userID, from, to); err != nil {
			logger.Warn("warm user summary", slog.String("user_id", userID), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		warmed++
	}
	j.Metrics.AddWarmed(TaskSummaryWarmup, warmed)
	logger.Info("completed summary warmup", slog.Int("users", warmed), slog.Int("failed", len(errs)), slog.Duration("duration", j.now().Sub(start)))
	return errors.Join(errs...)
}

func (j *SummaryWarmupJob) warmUser(ctx context.Context, userID string, from, to int64) error {
	userCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := j.Meals.Summary(userCtx, userID, from, to)
	return err
}

func (j *SummaryWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSummaryWarmup))
	}
	return slog.Default().With(slog.String("job", TaskSummaryWarmup))
}

func (j *SummaryWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
