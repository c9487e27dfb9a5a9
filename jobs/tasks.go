package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMenuCacheBump invalidates every cached resolved menu.
	TaskMenuCacheBump = "rbac:menu_bump"
	// TaskSessionPurge removes expired session audit records.
	TaskSessionPurge = "auth:session_purge"
)

// NewMenuCacheBumpTask constructs the cache invalidation task. The task
// carries no payload; bumping is global.
func NewMenuCacheBumpTask() *asynq.Task {
	return asynq.NewTask(TaskMenuCacheBump, nil)
}

// NewSessionPurgeTask constructs the session purge task.
func NewSessionPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskSessionPurge, nil)
}
