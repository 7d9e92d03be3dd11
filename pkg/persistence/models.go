package persistence

import (
	"time"
)

// Legacy defaults applied when a record arrives without explicit metadata.
const (
	DefaultAuthor     = "Prometheus AI"
	DefaultVersion    = "1.0.0"
	DefaultCategoryID = 1 // "General", seeded by the initial migration.
)

// Urgency levels span 1 (lowest) to 10 (critical). Each PromptVersions row
// stores one template body per level.
const (
	UrgencyMin = 1
	UrgencyMax = 10
)

// Prompt is a parameterized template record. Type is the stable business
// identifier ("research", "development", ...); Template holds the
// representative body used when no urgency-specific version applies.
//
//nolint:govet // struct alignment optimization not critical for this type.
type Prompt struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Template    string    `json:"template"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	Version     string    `json:"version,omitempty"`
	CreatedDate time.Time `json:"created_date"`
	UpdatedDate time.Time `json:"updated_date"`
	CategoryID  *int64    `json:"category_id,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// Tag labels prompts for discovery. Names are unique; Color is an optional
// display hint carried over from the legacy catalog.
type Tag struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// PromptVersion is an urgency-level snapshot of a prompt's template body.
// VersionNum is the urgency level (1-10); (PromptID, VersionNum) is unique.
type PromptVersion struct {
	ID          int64     `json:"id"`
	PromptID    int64     `json:"prompt_id"`
	VersionNum  int       `json:"version_num"`
	Template    string    `json:"template"`
	CreatedDate time.Time `json:"created_date"`
	Author      string    `json:"author,omitempty"`
}

// Category groups prompts; hierarchy edges live in CategoryHierarchy.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UsageLog records one invocation of a prompt against a model.
//
//nolint:govet // struct alignment optimization not critical for this type.
type UsageLog struct {
	ID          int64     `json:"id"`
	PromptID    int64     `json:"prompt_id"`
	UserID      *int64    `json:"user_id,omitempty"`
	SessionUUID string    `json:"session_uuid"`
	UsageDate   time.Time `json:"usage_date"`
	Success     bool      `json:"success"`
	TokensUsed  *int64    `json:"tokens_used,omitempty"`
	DurationMS  *int64    `json:"duration_ms,omitempty"`
	Model       string    `json:"model,omitempty"`
}

// PromptScore is the rolling per-prompt aggregate maintained alongside usage
// logs. One row per prompt.
type PromptScore struct {
	ID              int64     `json:"id"`
	PromptID        int64     `json:"prompt_id"`
	UsageCount      int64     `json:"usage_count"`
	SuccessCount    int64     `json:"success_count"`
	FailureCount    int64     `json:"failure_count"`
	TotalTokens     int64     `json:"total_tokens"`
	AvgSatisfaction *float64  `json:"avg_satisfaction,omitempty"`
	LastUsed        time.Time `json:"last_used"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UsageStats aggregates usage-log rows for a single prompt.
type UsageStats struct {
	PromptID      int64   `json:"prompt_id"`
	TotalUses     int64   `json:"total_uses"`
	Successes     int64   `json:"successes"`
	Failures      int64   `json:"failures"`
	SuccessRate   float64 `json:"success_rate"`
	AvgTokens     float64 `json:"avg_tokens"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// LlmModel is a registered model endpoint benchmarks can run against.
type LlmModel struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider,omitempty"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	IsLocal     bool   `json:"is_local"`
}

// Benchmark names a comparison run across models.
//
//nolint:govet // struct alignment optimization not critical for this type.
type Benchmark struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PromptText  string    `json:"prompt_text,omitempty"`
	CreatedDate time.Time `json:"created_date"`
	UserID      *int64    `json:"user_id,omitempty"`
	Metrics     string    `json:"metrics,omitempty"` // free-form JSON blob, legacy column
}

// BenchmarkResult is one model's scored response within a benchmark.
//
//nolint:govet // struct alignment optimization not critical for this type.
type BenchmarkResult struct {
	ID             int64     `json:"id"`
	BenchmarkID    int64     `json:"benchmark_id"`
	ModelID        int64     `json:"model_id"`
	PromptID       *int64    `json:"prompt_id,omitempty"`
	AccuracyScore  *float64  `json:"accuracy_score,omitempty"`
	CoherenceScore *float64  `json:"coherence_score,omitempty"`
	SpeedScore     *float64  `json:"speed_score,omitempty"`
	RelevanceScore *float64  `json:"relevance_score,omitempty"`
	ResponseText   string    `json:"response_text,omitempty"`
	ResponseTimeMS *int64    `json:"response_time_ms,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
