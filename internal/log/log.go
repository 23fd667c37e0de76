package log

const (
	NamespaceKey = "tracepool"

	PoolNameKey = NamespaceKey + ".pool.name"
	WorkerKey   = NamespaceKey + ".worker"

	TaskIDKey    = NamespaceKey + ".task.id"
	TaskStateKey = NamespaceKey + ".task.state"
	DelayKey     = NamespaceKey + ".task.delay"

	DurationKey = NamespaceKey + ".duration_ms"
)
