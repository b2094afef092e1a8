// ABOUTME: Execution history storage operations.
// ABOUTME: Records dispatch results per plugin and answers history queries.

package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/2389/plughub/plugins/core"
)

// Execution is one recorded hook invocation on one plugin
type Execution struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	PluginID   string    `json:"plugin"`
	Location   string    `json:"location"`
	Hook       string    `json:"hook"`
	Enabled    bool      `json:"enabled"`
	Success    bool      `json:"success"`
	Args       string    `json:"args,omitempty"`
	Return     string    `json:"return,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationUs int64     `json:"duration_us"`
}

// ExecutionQuery represents filters for the execution history
type ExecutionQuery struct {
	Limit      int
	Offset     int
	RunID      string
	PluginID   string
	Hook       string
	FailedOnly bool
}

// ExecutionStats represents aggregate statistics
type ExecutionStats struct {
	TotalRuns       int   `json:"total_runs"`
	TotalExecutions int   `json:"total_executions"`
	Failures        int   `json:"failures"`
	AvgDurationUs   int64 `json:"avg_duration_us"`
	UniqueHooks     int   `json:"unique_hooks"`
}

// Record stores every result of one dispatch under runID.
// It satisfies core.Recorder.
func (s *Store) Record(runID string, results []core.ExecutionResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO executions (run_id, timestamp, plugin_id, location, hook, enabled, success, args, return_value, error, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range results {
		var pluginID, location, errMsg string
		if r.Plugin != nil {
			pluginID = r.Plugin.ID()
			location = r.Plugin.Location()
		}
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		if _, err := stmt.Exec(runID, now, pluginID, location, r.Hook, r.Enabled, r.Success,
			encodeValue(r.Args), encodeValue(r.Return), errMsg, r.Elapsed.Microseconds()); err != nil {
			return fmt.Errorf("failed to record %s/%s: %w", pluginID, r.Hook, err)
		}
	}

	return tx.Commit()
}

// encodeValue renders a hook argument or return value for storage.
func encodeValue(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// GetExecutions retrieves execution history with filtering, newest first
func (s *Store) GetExecutions(q *ExecutionQuery) ([]*Execution, error) {
	query := `SELECT id, run_id, timestamp, plugin_id, COALESCE(location, ''), hook, enabled, success,
	          COALESCE(args, ''), COALESCE(return_value, ''), COALESCE(error, ''), duration_us
	          FROM executions WHERE 1=1`
	args := []any{}

	if q.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, q.RunID)
	}
	if q.PluginID != "" {
		query += " AND plugin_id = ?"
		args = append(args, q.PluginID)
	}
	if q.Hook != "" {
		query += " AND hook = ?"
		args = append(args, q.Hook)
	}
	if q.FailedOnly {
		query += " AND success = 0"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, q.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*Execution
	for rows.Next() {
		e := &Execution{}
		if err := rows.Scan(&e.ID, &e.RunID, &e.Timestamp, &e.PluginID, &e.Location, &e.Hook,
			&e.Enabled, &e.Success, &e.Args, &e.Return, &e.Error, &e.DurationUs); err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

// GetExecutionStats returns aggregate statistics over the whole history
func (s *Store) GetExecutionStats() (*ExecutionStats, error) {
	stats := &ExecutionStats{}
	err := s.db.QueryRow(`
		SELECT COUNT(DISTINCT run_id), COUNT(*), COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
		       CAST(COALESCE(AVG(duration_us), 0) AS INTEGER), COUNT(DISTINCT hook)
		FROM executions
	`).Scan(&stats.TotalRuns, &stats.TotalExecutions, &stats.Failures, &stats.AvgDurationUs, &stats.UniqueHooks)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
