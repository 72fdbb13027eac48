package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/crosspost-app/crosspost/internal/repository"
)

// StuckPostsJob surfaces posts left in processing longer than the
// threshold. A stuck row means a status write was lost or a worker died
// mid-attempt; the jobs here only report the drift, they never repair it.
type StuckPostsJob struct {
	pr        repository.ScheduledPostRepository
	threshold time.Duration
}

func NewStuckPostsJob(pr repository.ScheduledPostRepository, threshold time.Duration) *StuckPostsJob {
	return &StuckPostsJob{pr: pr, threshold: threshold}
}

func (j *StuckPostsJob) ReportStuckPosts() {
	ctx := context.Background()

	posts, err := j.pr.ListStuckProcessing(ctx, time.Now().Add(-j.threshold))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, post := range posts {
		slog.Warn("post stuck in processing",
			"post_id", post.ID,
			"platform", post.Platform,
			"updated_at", post.UpdatedAt,
			"scheduled_at", post.ScheduledAt)
	}
}
