package metrickeys

const (
	Prefix = "tracepool."

	TaskSubmitted = Prefix + "task.submitted"
	TaskRejected  = Prefix + "task.rejected"
	TaskScheduled = Prefix + "task.scheduled"
	TaskCompleted = Prefix + "task.completed"
	TaskCanceled  = Prefix + "task.canceled"
	TaskDelay     = Prefix + "task.time_in_queue"
	TaskDuration  = Prefix + "task.duration"

	PoolWorkers     = Prefix + "pool.workers"
	PoolUtilization = Prefix + "pool.utilization"
)

// Tag names
const (
	// Name of the pool reporting the metric
	Pool = "pool"

	// Outcome of a completed task: success, error, or panic
	Outcome = "outcome"

	// Reason a task was rejected or canceled
	Reason = "reason"
)
