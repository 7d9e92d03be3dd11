package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AnalyticsOperations records prompt usage and benchmark activity. It owns
// the PromptUsage, PromptScores, LlmModels, Benchmarks, and BenchmarkResults
// tables; the catalog tables belong to PromptRepository.
type AnalyticsOperations struct {
	db *sql.DB
}

// NewAnalyticsOperations creates the analytics layer over an open database
// handle.
func NewAnalyticsOperations(db *sql.DB) *AnalyticsOperations {
	return &AnalyticsOperations{db: db}
}

// NewSessionUUID returns a fresh session identifier for usage logging.
func NewSessionUUID() string {
	return uuid.NewString()
}

// RecordUsage inserts a usage-log row and folds it into the prompt's rolling
// score in one transaction. A missing session UUID and usage date are filled
// in; u.ID is backfilled from the insert.
func (a *AnalyticsOperations) RecordUsage(u *UsageLog) (err error) {
	if u.PromptID == 0 {
		return fmt.Errorf("usage log requires a prompt id")
	}
	if u.SessionUUID == "" {
		u.SessionUUID = NewSessionUUID()
	}
	if u.UsageDate.IsZero() {
		u.UsageDate = time.Now().UTC()
	}

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.Exec(`
		INSERT INTO PromptUsage (prompt_id, user_id, session_uuid, usage_date, success, tokens_used, duration_ms, model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.PromptID, u.UserID, u.SessionUUID, u.UsageDate, u.Success,
		u.TokensUsed, u.DurationMS, u.Model)
	if err != nil {
		return fmt.Errorf("failed to record usage for prompt %d: %w", u.PromptID, err)
	}
	u.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read usage log id: %w", err)
	}

	var successInc, failureInc, tokens int64
	if u.Success {
		successInc = 1
	} else {
		failureInc = 1
	}
	if u.TokensUsed != nil {
		tokens = *u.TokensUsed
	}

	if _, err = tx.Exec(`
		INSERT INTO PromptScores (prompt_id, usage_count, success_count, failure_count, total_tokens, last_used)
		VALUES (?, 1, ?, ?, ?, ?)
		ON CONFLICT(prompt_id) DO UPDATE SET
			usage_count = usage_count + 1,
			success_count = success_count + excluded.success_count,
			failure_count = failure_count + excluded.failure_count,
			total_tokens = total_tokens + excluded.total_tokens,
			last_used = excluded.last_used,
			updated_at = excluded.last_used`,
		u.PromptID, successInc, failureInc, tokens, u.UsageDate); err != nil {
		return fmt.Errorf("failed to update score for prompt %d: %w", u.PromptID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage for prompt %d: %w", u.PromptID, err)
	}
	return nil
}

// GetScore returns the rolling score for a prompt. A prompt that has never
// been used has no score row; that is reported as (nil, false, nil).
func (a *AnalyticsOperations) GetScore(promptID int64) (*PromptScore, bool, error) {
	row := a.db.QueryRow(`
		SELECT id, prompt_id, usage_count, success_count, failure_count, total_tokens, avg_satisfaction, last_used, created_at, updated_at
		FROM PromptScores
		WHERE prompt_id = ?`, promptID)

	var s PromptScore
	var avg sql.NullFloat64
	err := row.Scan(&s.ID, &s.PromptID, &s.UsageCount, &s.SuccessCount,
		&s.FailureCount, &s.TotalTokens, &avg, &s.LastUsed, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get score for prompt %d: %w", promptID, err)
	}
	if avg.Valid {
		s.AvgSatisfaction = &avg.Float64
	}
	return &s, true, nil
}

// TopPrompts returns up to limit scores ordered by usage count, most used
// first. Ties break on prompt id for determinism.
func (a *AnalyticsOperations) TopPrompts(limit int) ([]*PromptScore, error) {
	rows, err := a.db.Query(`
		SELECT id, prompt_id, usage_count, success_count, failure_count, total_tokens, avg_satisfaction, last_used, created_at, updated_at
		FROM PromptScores
		ORDER BY usage_count DESC, prompt_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top prompts: %w", err)
	}
	defer rows.Close()

	var scores []*PromptScore
	for rows.Next() {
		var s PromptScore
		var avg sql.NullFloat64
		if err := rows.Scan(&s.ID, &s.PromptID, &s.UsageCount, &s.SuccessCount,
			&s.FailureCount, &s.TotalTokens, &avg, &s.LastUsed, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prompt score: %w", err)
		}
		if avg.Valid {
			s.AvgSatisfaction = &avg.Float64
		}
		scores = append(scores, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over prompt scores: %w", err)
	}
	return scores, nil
}

// UsageStats aggregates the usage-log rows for one prompt. A prompt with no
// usage reports zeros.
func (a *AnalyticsOperations) UsageStats(promptID int64) (*UsageStats, error) {
	row := a.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(success), 0),
		       COALESCE(AVG(tokens_used), 0),
		       COALESCE(AVG(duration_ms), 0)
		FROM PromptUsage
		WHERE prompt_id = ?`, promptID)

	stats := UsageStats{PromptID: promptID}
	if err := row.Scan(&stats.TotalUses, &stats.Successes, &stats.AvgTokens, &stats.AvgDurationMS); err != nil {
		return nil, fmt.Errorf("failed to aggregate usage for prompt %d: %w", promptID, err)
	}
	stats.Failures = stats.TotalUses - stats.Successes
	if stats.TotalUses > 0 {
		stats.SuccessRate = float64(stats.Successes) / float64(stats.TotalUses)
	}
	return &stats, nil
}

// RegisterModel upserts a model by its unique name and backfills m.ID.
func (a *AnalyticsOperations) RegisterModel(m *LlmModel) error {
	if m.Name == "" {
		return fmt.Errorf("model requires a name")
	}

	_, err := a.db.Exec(`
		INSERT INTO LlmModels (name, provider, version, description, is_local)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			provider = excluded.provider,
			version = excluded.version,
			description = excluded.description,
			is_local = excluded.is_local`,
		m.Name, m.Provider, m.Version, m.Description, m.IsLocal)
	if err != nil {
		return fmt.Errorf("failed to register model %q: %w", m.Name, err)
	}

	if err := a.db.QueryRow("SELECT id FROM LlmModels WHERE name = ?", m.Name).Scan(&m.ID); err != nil {
		return fmt.Errorf("failed to read model id for %q: %w", m.Name, err)
	}
	return nil
}

// ListModels returns all registered models ordered by name.
func (a *AnalyticsOperations) ListModels() ([]*LlmModel, error) {
	rows, err := a.db.Query(`
		SELECT id, name, provider, version, description, is_local
		FROM LlmModels
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	var models []*LlmModel
	for rows.Next() {
		var m LlmModel
		var provider, version, description sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &provider, &version, &description, &m.IsLocal); err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		m.Provider = provider.String
		m.Version = version.String
		m.Description = description.String
		models = append(models, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over models: %w", err)
	}
	return models, nil
}

// CreateBenchmark inserts a benchmark run and backfills b.ID.
func (a *AnalyticsOperations) CreateBenchmark(b *Benchmark) error {
	if b.Name == "" {
		return fmt.Errorf("benchmark requires a name")
	}
	if b.CreatedDate.IsZero() {
		b.CreatedDate = time.Now().UTC()
	}

	res, err := a.db.Exec(`
		INSERT INTO Benchmarks (name, description, prompt_text, created_date, user_id, metrics)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.Name, b.Description, b.PromptText, b.CreatedDate, b.UserID, b.Metrics)
	if err != nil {
		return fmt.Errorf("failed to create benchmark %q: %w", b.Name, err)
	}
	b.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read benchmark id: %w", err)
	}
	return nil
}

// RecordBenchmarkResult inserts one model's scored response and backfills
// r.ID.
func (a *AnalyticsOperations) RecordBenchmarkResult(r *BenchmarkResult) error {
	if r.BenchmarkID == 0 || r.ModelID == 0 {
		return fmt.Errorf("benchmark result requires benchmark and model ids")
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	res, err := a.db.Exec(`
		INSERT INTO BenchmarkResults (benchmark_id, model_id, prompt_id, accuracy_score, coherence_score, speed_score, relevance_score, response_text, response_time_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BenchmarkID, r.ModelID, r.PromptID, r.AccuracyScore, r.CoherenceScore,
		r.SpeedScore, r.RelevanceScore, r.ResponseText, r.ResponseTimeMS, r.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record result for benchmark %d: %w", r.BenchmarkID, err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read benchmark result id: %w", err)
	}
	return nil
}

// ResultsByBenchmark returns a benchmark's results in insertion order.
func (a *AnalyticsOperations) ResultsByBenchmark(benchmarkID int64) ([]*BenchmarkResult, error) {
	rows, err := a.db.Query(`
		SELECT id, benchmark_id, model_id, prompt_id, accuracy_score, coherence_score, speed_score, relevance_score, response_text, response_time_ms, timestamp
		FROM BenchmarkResults
		WHERE benchmark_id = ?
		ORDER BY id`, benchmarkID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for benchmark %d: %w", benchmarkID, err)
	}
	defer rows.Close()

	var results []*BenchmarkResult
	for rows.Next() {
		var r BenchmarkResult
		var promptID, responseTime sql.NullInt64
		var accuracy, coherence, speed, relevance sql.NullFloat64
		var responseText sql.NullString
		if err := rows.Scan(&r.ID, &r.BenchmarkID, &r.ModelID, &promptID,
			&accuracy, &coherence, &speed, &relevance,
			&responseText, &responseTime, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan benchmark result: %w", err)
		}
		if promptID.Valid {
			r.PromptID = &promptID.Int64
		}
		if accuracy.Valid {
			r.AccuracyScore = &accuracy.Float64
		}
		if coherence.Valid {
			r.CoherenceScore = &coherence.Float64
		}
		if speed.Valid {
			r.SpeedScore = &speed.Float64
		}
		if relevance.Valid {
			r.RelevanceScore = &relevance.Float64
		}
		r.ResponseText = responseText.String
		if responseTime.Valid {
			r.ResponseTimeMS = &responseTime.Int64
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over benchmark results: %w", err)
	}
	return results, nil
}
