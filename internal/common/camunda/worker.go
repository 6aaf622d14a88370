// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"motocredito-workers/internal/common/config"
	"motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/common/metrics"
	"motocredito-workers/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// HandlerFunc matches the Zeebe job handler signature.
type HandlerFunc func(client worker.JobClient, job entities.Job)

// StartWorker opens a job worker for taskType. It returns nil when the
// worker is disabled in config.
func StartWorker(
	client zbc.Client,
	taskType string,
	wcfg config.WorkerConfig,
	handler HandlerFunc,
	log logger.Logger,
	obs *observability.Observability,
) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	instrumented := func(c worker.JobClient, job entities.Job) {
		start := time.Now()
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer func() {
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			elapsed := time.Since(start)
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
			if obs != nil {
				obs.RecordJob(context.Background(), taskType, "handled", elapsed)
			}
		}()
		handler(c, job)
	}

	w := client.NewJobWorker().
		JobType(taskType).
		Handler(instrumented).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout":       wcfg.Timeout,
	})
	return w
}

// JobResults completes and fails jobs for a single task type, keeping the
// job counters in step with what was sent to the broker.
type JobResults struct {
	taskType string
	logger   logger.Logger
	errors   *errors.ErrorHandler
}

func NewJobResults(taskType string, log logger.Logger) *JobResults {
	return &JobResults{
		taskType: taskType,
		logger:   log,
		errors:   errors.NewErrorHandler(log),
	}
}

func (r *JobResults) Complete(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		r.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		r.Fail(ctx, client, job, errors.NewInputValidationError(err.Error()))
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		r.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(r.taskType).Inc()
}

func (r *JobResults) Fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := errors.CodeOf(err)
	metrics.WorkerJobsFailed.WithLabelValues(r.taskType, string(code)).Inc()
	r.errors.HandleJobError(ctx, client, job, err)
}
