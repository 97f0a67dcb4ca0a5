package layout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/onnwee/barnes-hut-tree/internal/bhtree"
	"github.com/onnwee/barnes-hut-tree/internal/errorreporting"
	"github.com/onnwee/barnes-hut-tree/internal/logger"
	"github.com/onnwee/barnes-hut-tree/internal/metrics"
)

// Publisher receives the layout after every tick that changed it.
type Publisher interface {
	PublishLayout(res StepResult, doc Document)
}

type JobOptions struct {
	Interval time.Duration
	// StepsPerTick defaults to 1.
	StepsPerTick int
	// SnapshotEvery persists a snapshot every N ticks that moved nodes.
	// Zero disables persistence.
	SnapshotEvery int
	Publisher     Publisher
}

// Job steps the layout on a ticker.
type Job struct {
	service *Service
	opts    JobOptions
	log     *slog.Logger

	lastPublished uint64
	movingTicks   int
}

func NewJob(service *Service, opts JobOptions) *Job {
	if opts.StepsPerTick < 1 {
		opts.StepsPerTick = 1
	}
	return &Job{
		service: service,
		opts:    opts,
		log:     logger.WithComponent("layout_job"),
	}
}

// Start runs ticks until ctx is done. A non-positive interval disables the
// job.
func (j *Job) Start(ctx context.Context) {
	if j.opts.Interval <= 0 {
		j.log.Info("Layout job disabled")
		return
	}
	ticker := time.NewTicker(j.opts.Interval)
	defer ticker.Stop()
	j.log.Info("Layout job started", "interval", j.opts.Interval, "steps_per_tick", j.opts.StepsPerTick)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				j.log.Error("Layout tick failed", "error", err)
			}
		}
	}
}

// Tick runs one round: step, publish if anything changed, and persist on
// schedule. Panics from the tree are recovered and reported.
func (j *Job) Tick(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errorreporting.CapturePanic(rec, "layout_job")
			var inv *bhtree.InvariantError
			if errors.As(err, &inv) {
				metrics.TreeInvariantFailures.Inc()
			}
		}
	}()

	res, err := j.service.Step(ctx, j.opts.StepsPerTick)
	if err != nil {
		return err
	}

	if v := j.service.Version(); v != j.lastPublished {
		j.lastPublished = v
		if j.opts.Publisher != nil {
			j.opts.Publisher.PublishLayout(res, j.service.Document())
		}
	}

	if res.Moved == 0 || j.opts.SnapshotEvery <= 0 || !j.service.HasStore() {
		return nil
	}
	j.movingTicks++
	if j.movingTicks%j.opts.SnapshotEvery != 0 {
		return nil
	}
	row, err := j.service.Persist(ctx)
	if err != nil {
		// Persistence failures do not stop the layout.
		j.log.Warn("Failed to persist layout snapshot", "error", err)
		return nil
	}
	j.log.Debug("Layout snapshot stored", "snapshot_id", row.ID, "step", row.Step)
	return nil
}
