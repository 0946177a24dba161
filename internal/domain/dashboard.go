package domain

import "time"

// Script is a stored job script.
type Script struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Type      ScriptType `json:"type"`
	Content   string     `json:"content,omitempty"`
	Size      int        `json:"size"`
	Tasks     int        `json:"tasks"`
	CreatedAt time.Time  `json:"created"`
	UpdatedAt time.Time  `json:"updated"`
}

// LogEntry is the record of one task execution.
type LogEntry struct {
	ID            int64     `json:"id"`
	TaskID        int64     `json:"taskId"`
	TaskName      string    `json:"taskName"`
	ExecutionTime time.Time `json:"executionTime"`
	Duration      string    `json:"duration"`
	Status        RunStatus `json:"status"`
	Output        string    `json:"output"`
}

// EnvVar is an environment variable made available to job scripts.
type EnvVar struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	IsSecret  bool      `json:"isSecret"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"updated"`
}

const maskedValue = "********"

// Masked hides the value of secret variables.
func (v EnvVar) Masked() EnvVar {
	if v.IsSecret {
		v.Value = maskedValue
	}
	return v
}

// Settings holds the dashboard configuration pages.
type Settings struct {
	Notifications NotificationSettings `json:"notifications"`
	Database      DatabaseSettings     `json:"database"`
	GitHub        GitHubSettings       `json:"github"`
	Webhook       WebhookSettings      `json:"webhook"`
}

// Masked hides the Telegram bot token and the webhook secret.
func (s Settings) Masked() Settings {
	s.Notifications.TelegramBotToken = maskSet(s.Notifications.TelegramBotToken)
	s.Webhook.Secret = maskSet(s.Webhook.Secret)
	return s
}

// KeepSecrets restores from stored every credential that s still carries masked.
func (s Settings) KeepSecrets(stored Settings) Settings {
	if s.Notifications.TelegramBotToken == maskedValue {
		s.Notifications.TelegramBotToken = stored.Notifications.TelegramBotToken
	}
	if s.Webhook.Secret == maskedValue {
		s.Webhook.Secret = stored.Webhook.Secret
	}
	return s
}

func maskSet(v string) string {
	if v == "" {
		return ""
	}
	return maskedValue
}

type NotificationSettings struct {
	Email            bool   `json:"email"`
	Discord          bool   `json:"discord"`
	Slack            bool   `json:"slack"`
	Telegram         bool   `json:"telegram"`
	EmailAddress     string `json:"emailAddress"`
	DiscordWebhook   string `json:"discordWebhook"`
	SlackWebhook     string `json:"slackWebhook"`
	TelegramBotToken string `json:"telegramBotToken"`
	TelegramChatID   string `json:"telegramChatId"`
}

type DatabaseSettings struct {
	Type      string `json:"type"`
	CustomURL string `json:"customUrl"`
}

type GitHubSettings struct {
	Repo         string `json:"repo"`
	Branch       string `json:"branch"`
	WorkflowFile string `json:"workflowFile"`
	AutoCreatePR bool   `json:"autoCreatePr"`
}

type WebhookSettings struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Secret  string `json:"secret"`
}

// DashboardStats summarises the home page.
type DashboardStats struct {
	TotalTasks  int        `json:"totalTasks"`
	ActiveTasks int        `json:"activeTasks"`
	FailedRuns  int        `json:"failedRuns"`
	SuccessRate float64    `json:"successRate"`
	RecentLogs  []LogEntry `json:"recentLogs"`
}

// Workflow is a GitHub Actions workflow as returned by the REST API.
type Workflow struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	URL       string    `json:"url"`
	HTMLURL   string    `json:"html_url"`
	BadgeURL  string    `json:"badge_url"`
}

// WorkflowList is the GitHub Actions list workflows response.
type WorkflowList struct {
	TotalCount int        `json:"total_count"`
	Workflows  []Workflow `json:"workflows"`
}
