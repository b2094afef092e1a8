// ABOUTME: Request log storage operations.
// ABOUTME: Handles inserting and querying admin API request logs.

package store

import "time"

// RequestLog represents one admin API request
type RequestLog struct {
	ID           int64
	Timestamp    time.Time
	PluginID     string
	Method       string
	Path         string
	StatusCode   int
	DurationMs   int
	IPAddress    string
	UserAgent    string
	RequestBody  string
	ResponseBody string
}

// LogRequest inserts a request log entry
func (s *Store) LogRequest(log *RequestLog) error {
	ts := log.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()
	_, err := s.db.Exec(`
		INSERT INTO request_logs (timestamp, plugin_id, method, path, status_code, duration_ms, ip_address, user_agent, request_body, response_body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ts, log.PluginID, log.Method, log.Path, log.StatusCode, log.DurationMs, log.IPAddress, log.UserAgent, log.RequestBody, log.ResponseBody)
	return err
}

// RequestLogQuery represents filters for request logs
type RequestLogQuery struct {
	Limit      int
	Offset     int
	PluginID   string
	Method     string
	PathPrefix string
	StatusCode int
}

// GetRequestLogs retrieves request logs with filtering, newest first
func (s *Store) GetRequestLogs(q *RequestLogQuery) ([]*RequestLog, error) {
	query := `SELECT id, timestamp, plugin_id, method, path, status_code, duration_ms,
	          ip_address, user_agent, request_body, response_body
	          FROM request_logs WHERE 1=1`
	args := []any{}

	if q.PluginID != "" {
		query += " AND plugin_id = ?"
		args = append(args, q.PluginID)
	}
	if q.Method != "" {
		query += " AND method = ?"
		args = append(args, q.Method)
	}
	if q.PathPrefix != "" {
		query += ` AND path LIKE ? ESCAPE '\'`
		args = append(args, escapeSQLLike(q.PathPrefix)+"%")
	}
	if q.StatusCode > 0 {
		query += " AND status_code = ?"
		args = append(args, q.StatusCode)
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

	var logs []*RequestLog
	for rows.Next() {
		log := &RequestLog{}
		if err := rows.Scan(&log.ID, &log.Timestamp, &log.PluginID, &log.Method, &log.Path, &log.StatusCode,
			&log.DurationMs, &log.IPAddress, &log.UserAgent, &log.RequestBody, &log.ResponseBody); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// GetPluginRequestCount returns the number of requests that targeted a plugin since a given time
func (s *Store) GetPluginRequestCount(pluginID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*)
		FROM request_logs
		WHERE plugin_id = ? AND timestamp >= ?
	`, pluginID, since.UTC()).Scan(&count)
	return count, err
}
