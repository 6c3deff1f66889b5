package sched

import (
	"context"

	"github.com/rs/zerolog"

	"pawplan/internal/usecase"
)

// PlanCleanupJob cancels plans the broken-plan rule selects.
type PlanCleanupJob struct {
	plans usecase.PlanUseCase
	log   *zerolog.Logger
}

func NewPlanCleanupJob(plans usecase.PlanUseCase, logger *zerolog.Logger) *PlanCleanupJob {
	l := logger.With().Str("component", "PlanCleanupJob").Logger()
	return &PlanCleanupJob{plans: plans, log: &l}
}

func (j *PlanCleanupJob) Name() string { return "plan_cleanup" }

func (j *PlanCleanupJob) RunOnce(ctx context.Context) error {
	items, err := j.plans.CleanupBroken(ctx, false)
	if len(items) > 0 {
		j.log.Info().Int("count", len(items)).Msg("broken plans cancelled")
	}
	return err
}
