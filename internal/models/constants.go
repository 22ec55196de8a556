package models

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
)

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

const (
	// NoCursor is the poll cursor value before any update has been consumed.
	NoCursor = -1

	// DefaultPollInterval pause between two getUpdates calls, in seconds.
	DefaultPollInterval = 1

	// DefaultPollTimeout long-poll wait hint passed to getUpdates, in seconds.
	DefaultPollTimeout = 30

	// DefaultQueueSize capacity of the in-memory notification queue.
	DefaultQueueSize = 10000

	// DefaultNotifyWorkers number of shard workers consuming notifications.
	DefaultNotifyWorkers = 4

	// DefaultSendRate outbound Telegram messages per second.
	DefaultSendRate = 25

	// UrgentWindowDays tasks due within this many days are listed as urgent in board summaries.
	UrgentWindowDays = 3

	// RateLimitRequests API requests per identity per second.
	RateLimitRequests = 10
)
