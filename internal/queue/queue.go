package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

func taskID(postID int64) string {
	return fmt.Sprintf("publish:%d", postID)
}

// EnqueuePost schedules a publish job for execution at processAt. The call
// returns as soon as the task is durably queued; it never blocks on the
// publish itself.
func EnqueuePost(asynqClient *asynq.Client, payload PublishJobPayload, processAt time.Time, maxAttempts int) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)

	_, err = asynqClient.Enqueue(task,
		asynq.ProcessAt(processAt),
		// MaxRetry counts re-deliveries, so total attempts = MaxRetry+1.
		asynq.MaxRetry(maxAttempts-1),
		asynq.TaskID(taskID(payload.PostID)),
		// Keep finished tasks around for a day of queue-side inspection.
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return err
	}

	slog.Info("publish job enqueued", "post_id", payload.PostID, "platform", payload.Platform, "process_at", processAt)
	return nil
}

// CancelScheduledPost removes a not-yet-started job from the queue, keyed
// by post id.
func CancelScheduledPost(inspector *asynq.Inspector, postID int64) error {
	if err := inspector.DeleteTask("default", taskID(postID)); err != nil {
		return fmt.Errorf("cancel publish job for post %d: %w", postID, err)
	}
	return nil
}
