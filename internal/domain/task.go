package domain

import "time"

// TaskStatus represents whether a task is scheduled.
type TaskStatus string

const (
	TaskStatusActive   TaskStatus = "active"
	TaskStatusInactive TaskStatus = "inactive"
)

// RunStatus represents the outcome of a task execution.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
	RunStatusRunning RunStatus = "running"
)

// ScriptType is the runtime a script is executed with.
type ScriptType string

const (
	ScriptTypeNode   ScriptType = "node"
	ScriptTypePython ScriptType = "python"
	ScriptTypeShell  ScriptType = "shell"
)

// Task is a scheduled job executed by a CI workflow.
type Task struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Type        ScriptType `json:"type"`
	Script      string     `json:"script,omitempty"`
	Description string     `json:"description,omitempty"`
	Timeout     int        `json:"timeout"`
	RunOnce     bool       `json:"runOnce"`
	Params      string     `json:"params,omitempty"`
	Status      TaskStatus `json:"status"`
	LastStatus  RunStatus  `json:"lastStatus,omitempty"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// WithStatus returns a new Task with the given status.
func (t Task) WithStatus(status TaskStatus) Task {
	out := t
	out.Status = status
	out.UpdatedAt = time.Now()
	return out
}

// Toggled returns the task with its active state flipped.
func (t Task) Toggled() Task {
	if t.Status == TaskStatusActive {
		return t.WithStatus(TaskStatusInactive)
	}
	return t.WithStatus(TaskStatusActive)
}
