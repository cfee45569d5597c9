// Package scheduler runs the periodic jobs of the dispatch engine: provider
// link tests and completion of broadcasts past their finish time.
package scheduler

import "fmt"

// TaskType identifies a periodic job. The same names are accepted by the
// scheduler command's one-shot mode.
type TaskType string

const (
	TaskLinkTest        TaskType = "link_test"
	TaskCompleteExpired TaskType = "complete_expired"
)

// ParseTaskType validates a task name.
func ParseTaskType(s string) (TaskType, error) {
	switch t := TaskType(s); t {
	case TaskLinkTest, TaskCompleteExpired:
		return t, nil
	default:
		return "", fmt.Errorf("unknown task %q", s)
	}
}
