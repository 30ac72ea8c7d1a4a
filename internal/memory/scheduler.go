package memory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bioagent-ai/bioagent/internal/artifacts"
	"github.com/bioagent-ai/bioagent/internal/config"
	"github.com/bioagent-ai/bioagent/internal/cron"
)

// Handler names for the maintenance jobs NewMaintenanceScheduler wires up.
const (
	RetrievalIndexRebuildHandler = "memory.retrieval_index_rebuild"
	ArtifactGCHandler            = "memory.artifact_gc"

	defaultIndexRebuildInterval = time.Hour
	defaultArtifactGCInterval   = 6 * time.Hour
)

// NewMaintenanceScheduler builds a cron scheduler that periodically compacts
// the retrieval index and prunes expired artifacts. cfg.Jobs is honored as
// given; a job is added on the handler's default interval only when cfg
// carries none for that handler, so an operator can override the schedule
// without disabling the maintenance work entirely.
func NewMaintenanceScheduler(cfg config.CronConfig, mgr *Manager, artifactRepo artifacts.Repository, logger *slog.Logger, opts ...cron.Option) (*cron.Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	merged := cfg
	merged.Jobs = append([]config.CronJobConfig(nil), cfg.Jobs...)
	if mgr != nil {
		merged.Jobs = ensureMaintenanceJob(merged.Jobs, RetrievalIndexRebuildHandler, "rebuild retrieval index", defaultIndexRebuildInterval)
	}
	if artifactRepo != nil {
		merged.Jobs = ensureMaintenanceJob(merged.Jobs, ArtifactGCHandler, "prune expired artifacts", defaultArtifactGCInterval)
	}

	allOpts := make([]cron.Option, 0, len(opts)+3)
	allOpts = append(allOpts, cron.WithLogger(logger))
	if mgr != nil {
		allOpts = append(allOpts, cron.WithCustomHandler(RetrievalIndexRebuildHandler, cron.CustomHandlerFunc(
			func(ctx context.Context, job *cron.Job, args map[string]any) error {
				return mgr.Compact(ctx)
			},
		)))
	}
	if artifactRepo != nil {
		allOpts = append(allOpts, cron.WithCustomHandler(ArtifactGCHandler, cron.CustomHandlerFunc(
			func(ctx context.Context, job *cron.Job, args map[string]any) error {
				pruned, err := artifactRepo.PruneExpired(ctx)
				if err != nil {
					return err
				}
				if pruned > 0 {
					logger.Info("pruned expired artifacts", "count", pruned)
				}
				return nil
			},
		)))
	}
	allOpts = append(allOpts, opts...)

	return cron.NewScheduler(merged, allOpts...)
}

// ensureMaintenanceJob appends a default custom job for handler on interval
// unless jobs already contains one targeting it.
func ensureMaintenanceJob(jobs []config.CronJobConfig, handler, name string, interval time.Duration) []config.CronJobConfig {
	for _, job := range jobs {
		if job.Custom != nil && strings.EqualFold(strings.TrimSpace(job.Custom.Handler), handler) {
			return jobs
		}
	}
	return append(jobs, config.CronJobConfig{
		ID:      handler,
		Name:    name,
		Type:    "custom",
		Enabled: true,
		Schedule: config.CronScheduleConfig{
			Every: interval,
		},
		Custom: &config.CronCustomConfig{
			Handler: handler,
		},
	})
}
