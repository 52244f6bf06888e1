package agent

// Notifier receives human-readable progress lines. Implementations must be
// best-effort: a failed notification never aborts a run.
type Notifier interface {
	Notify(text string)
}

// TaskView is the read-only task snapshot published to clients after every
// task-list mutation.
type TaskView struct {
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Observer is the live-status sink for a workflow run.
type Observer interface {
	Notifier
	NotifyTaskList(tasks []TaskView)
}

// Messenger delivers out-of-band notifications (e.g. a Telegram chat).
type Messenger interface {
	Send(text string) error
}
