package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/activity-hub/backend/pkg/queue"
)

// Source is the job queue the processor drains.
type Source interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// HandlerFunc processes one job of a registered type.
type HandlerFunc func(ctx context.Context, job *queue.Job) error

// Processor dequeues jobs and dispatches them by type.
type Processor struct {
	source   Source
	handlers map[queue.JobType]HandlerFunc
	backoff  time.Duration
	logger   *zap.Logger
}

// NewProcessor creates a job processor.
func NewProcessor(source Source, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		source:   source,
		handlers: make(map[queue.JobType]HandlerFunc),
		backoff:  queue.RetryBackoff,
		logger:   logger,
	}
}

// Handle registers fn for jobs of type t.
func (p *Processor) Handle(t queue.JobType, fn HandlerFunc) {
	p.handlers[t] = fn
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	fn, ok := p.handlers[job.Type]
	if !ok {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	return fn(ctx, job)
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.source.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *Processor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
