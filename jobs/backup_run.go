package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/lachapita/lachapita/internal/backup"
	jobmetrics "github.com/lachapita/lachapita/internal/jobs"
)

// NewBackupRunHandler returns the handler for TaskBackupRun. After a
// successful dump the retention policy prunes old archives.
func NewBackupRunHandler(svc *backup.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskBackupRun)
		var payload BackupRunPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return tracker.End(asynq.SkipRetry)
			}
		}
		archive, err := svc.Create(ctx)
		if err != nil {
			return tracker.End(err)
		}
		logger.Info("backup archive written",
			slog.String("job", TaskBackupRun),
			slog.String("path", archive.Path),
			slog.Int64("bytes", archive.Size),
		)
		if payload.Keep > 0 {
			removed, err := svc.Prune(ctx, payload.Keep)
			if err != nil {
				return tracker.End(err)
			}
			if removed > 0 {
				logger.Info("old archives pruned", slog.Int("removed", removed))
			}
		}
		return tracker.End(nil)
	}
}
