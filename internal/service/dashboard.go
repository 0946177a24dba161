package service

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sumire/cronboard/internal/domain"
	"github.com/sumire/cronboard/internal/repository"
)

const (
	defaultTaskTimeout = 60
	recentLogCount     = 5
)

var envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DashboardService serves the mock dashboard collections.
type DashboardService struct {
	store *repository.DashboardStore
	now   func() time.Time
}

// NewDashboardService creates a DashboardService over store.
func NewDashboardService(store *repository.DashboardStore) *DashboardService {
	return &DashboardService{store: store, now: time.Now}
}

// TaskInput carries the editable task fields.
type TaskInput struct {
	Name        string
	Schedule    string
	Type        domain.ScriptType
	Script      string
	Description string
	Timeout     int
	RunOnce     bool
	Params      string
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	Query  string
	Status domain.TaskStatus
}

// ListTasks returns tasks matching f.
func (s *DashboardService) ListTasks(f TaskFilter) []domain.Task {
	q := strings.ToLower(f.Query)
	var out []domain.Task
	for _, t := range s.store.Tasks.List() {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(t.Name), q) && !strings.Contains(t.Schedule, q) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// GetTask returns the task with id.
func (s *DashboardService) GetTask(id int64) (domain.Task, error) {
	return s.store.Tasks.Get(id)
}

// CreateTask validates in and stores a new active task.
func (s *DashboardService) CreateTask(in TaskInput) (domain.Task, error) {
	sched, err := validateTask(&in)
	if err != nil {
		return domain.Task{}, err
	}

	now := s.now()
	next := sched.Next(now)
	return s.store.Tasks.Insert(domain.Task{
		Name:        in.Name,
		Schedule:    in.Schedule,
		Type:        in.Type,
		Script:      in.Script,
		Description: in.Description,
		Timeout:     in.Timeout,
		RunOnce:     in.RunOnce,
		Params:      in.Params,
		Status:      domain.TaskStatusActive,
		NextRun:     &next,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil)
}

// UpdateTask replaces the editable fields of the task with id.
func (s *DashboardService) UpdateTask(id int64, in TaskInput) (domain.Task, error) {
	sched, err := validateTask(&in)
	if err != nil {
		return domain.Task{}, err
	}

	now := s.now()
	return s.store.Tasks.Update(id, func(t domain.Task) (domain.Task, error) {
		next := sched.Next(now)
		t.Name = in.Name
		t.Schedule = in.Schedule
		t.Type = in.Type
		t.Script = in.Script
		t.Description = in.Description
		t.Timeout = in.Timeout
		t.RunOnce = in.RunOnce
		t.Params = in.Params
		t.NextRun = &next
		t.UpdatedAt = now
		return t, nil
	}, nil)
}

// DeleteTask removes the task with id.
func (s *DashboardService) DeleteTask(id int64) error {
	return s.store.Tasks.Delete(id)
}

// ToggleTask flips the task between active and inactive.
func (s *DashboardService) ToggleTask(id int64) (domain.Task, error) {
	return s.store.Tasks.Update(id, func(t domain.Task) (domain.Task, error) {
		return t.Toggled(), nil
	}, nil)
}

// RunTask marks the task as running and records a running log entry. The run
// itself happens in the CI workflow; the entry is an acknowledgment only.
func (s *DashboardService) RunTask(id int64) (domain.LogEntry, error) {
	now := s.now()
	task, err := s.store.Tasks.Update(id, func(t domain.Task) (domain.Task, error) {
		t.LastRun = &now
		t.LastStatus = domain.RunStatusRunning
		t.UpdatedAt = now
		return t, nil
	}, nil)
	if err != nil {
		return domain.LogEntry{}, err
	}

	return s.store.Logs.Insert(domain.LogEntry{
		TaskID:        task.ID,
		TaskName:      task.Name,
		ExecutionTime: now,
		Duration:      "0s",
		Status:        domain.RunStatusRunning,
		Output:        "Run requested, waiting for workflow...",
	}, nil)
}

func validateTask(in *TaskInput) (cron.Schedule, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Schedule = strings.TrimSpace(in.Schedule)
	if in.Name == "" {
		return nil, &domain.ValidationError{Field: "name", Message: "is required"}
	}
	if in.Script == "" {
		return nil, &domain.ValidationError{Field: "script", Message: "is required"}
	}
	sched, err := ParseSchedule(in.Schedule)
	if err != nil {
		return nil, err
	}
	switch in.Type {
	case "":
		in.Type = domain.ScriptTypeNode
	case domain.ScriptTypeNode, domain.ScriptTypePython, domain.ScriptTypeShell:
	default:
		return nil, &domain.ValidationError{Field: "type", Message: "must be node, python or shell"}
	}
	if in.Timeout == 0 {
		in.Timeout = defaultTaskTimeout
	}
	if in.Timeout < 0 {
		return nil, &domain.ValidationError{Field: "timeout", Message: "must be positive"}
	}
	return sched, nil
}

// ParseSchedule parses a standard five-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, &domain.ValidationError{Field: "schedule", Message: "is required"}
	}
	if len(strings.Fields(expr)) != 5 {
		return nil, &domain.ValidationError{Field: "schedule", Message: "must have five fields"}
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, &domain.ValidationError{Field: "schedule", Message: err.Error()}
	}
	return sched, nil
}

// ScriptInput carries the editable script fields.
type ScriptInput struct {
	Name    string
	Type    domain.ScriptType
	Content string
}

// ListScripts returns scripts whose name contains query.
func (s *DashboardService) ListScripts(query string) []domain.Script {
	q := strings.ToLower(query)
	var out []domain.Script
	for _, sc := range s.store.Scripts.List() {
		if q == "" || strings.Contains(strings.ToLower(sc.Name), q) {
			out = append(out, sc)
		}
	}
	return out
}

// GetScript returns the script with id.
func (s *DashboardService) GetScript(id int64) (domain.Script, error) {
	return s.store.Scripts.Get(id)
}

// CreateScript stores a new script.
func (s *DashboardService) CreateScript(in ScriptInput) (domain.Script, error) {
	if err := validateScript(&in); err != nil {
		return domain.Script{}, err
	}
	now := s.now()
	return s.store.Scripts.Insert(domain.Script{
		Name:      in.Name,
		Type:      in.Type,
		Content:   in.Content,
		Size:      len(in.Content),
		CreatedAt: now,
		UpdatedAt: now,
	}, sameScriptName(in.Name))
}

// UpdateScript replaces the script with id.
func (s *DashboardService) UpdateScript(id int64, in ScriptInput) (domain.Script, error) {
	if err := validateScript(&in); err != nil {
		return domain.Script{}, err
	}
	now := s.now()
	return s.store.Scripts.Update(id, func(sc domain.Script) (domain.Script, error) {
		sc.Name = in.Name
		sc.Type = in.Type
		sc.Content = in.Content
		sc.Size = len(in.Content)
		sc.UpdatedAt = now
		return sc, nil
	}, sameScriptName(in.Name))
}

// DeleteScript removes the script with id.
func (s *DashboardService) DeleteScript(id int64) error {
	return s.store.Scripts.Delete(id)
}

func sameScriptName(name string) func(domain.Script) bool {
	return func(sc domain.Script) bool { return sc.Name == name }
}

func validateScript(in *ScriptInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return &domain.ValidationError{Field: "name", Message: "is required"}
	}
	switch in.Type {
	case domain.ScriptTypeNode, domain.ScriptTypePython, domain.ScriptTypeShell:
		return nil
	default:
		return &domain.ValidationError{Field: "type", Message: "must be node, python or shell"}
	}
}

// LogFilter narrows ListLogs.
type LogFilter struct {
	Query  string
	Status domain.RunStatus
	TaskID int64
}

// ListLogs returns log entries matching f, newest first.
func (s *DashboardService) ListLogs(f LogFilter) []domain.LogEntry {
	q := strings.ToLower(f.Query)
	var out []domain.LogEntry
	for _, l := range s.store.Logs.List() {
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.TaskID != 0 && l.TaskID != f.TaskID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(l.TaskName), q) && !strings.Contains(strings.ToLower(l.Output), q) {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExecutionTime.After(out[j].ExecutionTime)
	})
	return out
}

// GetLog returns the log entry with id.
func (s *DashboardService) GetLog(id int64) (domain.LogEntry, error) {
	return s.store.Logs.Get(id)
}

// DeleteLog removes the log entry with id.
func (s *DashboardService) DeleteLog(id int64) error {
	return s.store.Logs.Delete(id)
}

// EnvInput carries the editable environment variable fields.
type EnvInput struct {
	Name     string
	Value    string
	IsSecret bool
}

// ListEnv returns all variables; secret values are masked unless reveal is set.
func (s *DashboardService) ListEnv(reveal bool) []domain.EnvVar {
	vars := s.store.EnvVars.List()
	if !reveal {
		for i := range vars {
			vars[i] = vars[i].Masked()
		}
	}
	return vars
}

// GetEnv returns the variable with id.
func (s *DashboardService) GetEnv(id int64, reveal bool) (domain.EnvVar, error) {
	v, err := s.store.EnvVars.Get(id)
	if err != nil {
		return domain.EnvVar{}, err
	}
	if !reveal {
		v = v.Masked()
	}
	return v, nil
}

// CreateEnv stores a new variable. Names are unique.
func (s *DashboardService) CreateEnv(in EnvInput) (domain.EnvVar, error) {
	if err := validateEnv(&in); err != nil {
		return domain.EnvVar{}, err
	}
	now := s.now()
	v, err := s.store.EnvVars.Insert(domain.EnvVar{
		Name:      in.Name,
		Value:     in.Value,
		IsSecret:  in.IsSecret,
		CreatedAt: now,
		UpdatedAt: now,
	}, sameEnvName(in.Name))
	if err != nil {
		return domain.EnvVar{}, fmt.Errorf("create env %s: %w", in.Name, err)
	}
	return v.Masked(), nil
}

// UpdateEnv replaces the variable with id.
func (s *DashboardService) UpdateEnv(id int64, in EnvInput) (domain.EnvVar, error) {
	if err := validateEnv(&in); err != nil {
		return domain.EnvVar{}, err
	}
	now := s.now()
	v, err := s.store.EnvVars.Update(id, func(v domain.EnvVar) (domain.EnvVar, error) {
		v.Name = in.Name
		v.Value = in.Value
		v.IsSecret = in.IsSecret
		v.UpdatedAt = now
		return v, nil
	}, sameEnvName(in.Name))
	if err != nil {
		return domain.EnvVar{}, fmt.Errorf("update env %d: %w", id, err)
	}
	return v.Masked(), nil
}

// DeleteEnv removes the variable with id.
func (s *DashboardService) DeleteEnv(id int64) error {
	return s.store.EnvVars.Delete(id)
}

func sameEnvName(name string) func(domain.EnvVar) bool {
	return func(v domain.EnvVar) bool { return v.Name == name }
}

func validateEnv(in *EnvInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return &domain.ValidationError{Field: "name", Message: "is required"}
	}
	if !envNamePattern.MatchString(in.Name) {
		return &domain.ValidationError{Field: "name", Message: "must contain only letters, digits and underscores"}
	}
	return nil
}

// Settings returns the dashboard settings with credentials masked.
func (s *DashboardService) Settings() domain.Settings {
	return s.store.Settings().Masked()
}

// UpdateSettings replaces the dashboard settings. Credentials sent back masked
// keep their stored value.
func (s *DashboardService) UpdateSettings(settings domain.Settings) (domain.Settings, error) {
	if settings.GitHub.Repo != "" {
		if err := validateRepository(settings.GitHub.Repo); err != nil {
			return domain.Settings{}, err
		}
	}
	if settings.GitHub.Branch == "" {
		settings.GitHub.Branch = "main"
	}
	settings = settings.KeepSecrets(s.store.Settings())
	return s.store.SaveSettings(settings).Masked(), nil
}

// Stats summarises tasks and recent runs for the home page.
func (s *DashboardService) Stats() domain.DashboardStats {
	tasks := s.store.Tasks.List()
	logs := s.ListLogs(LogFilter{})

	stats := domain.DashboardStats{TotalTasks: len(tasks)}
	for _, t := range tasks {
		if t.Status == domain.TaskStatusActive {
			stats.ActiveTasks++
		}
	}

	var succeeded, finished int
	for _, l := range logs {
		switch l.Status {
		case domain.RunStatusSuccess:
			succeeded++
			finished++
		case domain.RunStatusFailed:
			stats.FailedRuns++
			finished++
		}
	}
	if finished > 0 {
		stats.SuccessRate = math.Round(float64(succeeded)/float64(finished)*1000) / 10
	}

	if len(logs) > recentLogCount {
		logs = logs[:recentLogCount]
	}
	stats.RecentLogs = logs
	return stats
}
