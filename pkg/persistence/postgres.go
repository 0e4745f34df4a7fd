package persistence

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// AuditLog persists session tokens and session lifecycle events
// (auth attempts, stream start/stop) to PostgreSQL.
type AuditLog struct {
	db *sql.DB
}

// Config holds database configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewAuditLog connects to PostgreSQL and ensures the schema exists.
func NewAuditLog(config Config) (*AuditLog, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host,
		config.Port,
		config.User,
		config.Password,
		config.DBName,
		config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	audit := &AuditLog{db: db}

	if err := audit.InitSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return audit, nil
}

// InitSchema creates the audit tables if they don't already exist.
func (a *AuditLog) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_token VARCHAR(64) PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL,
		remote_addr VARCHAR(64) NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_session_id ON sessions(session_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

	CREATE TABLE IF NOT EXISTS auth_attempts (
		id SERIAL PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL,
		remote_addr VARCHAR(64) NOT NULL,
		success BOOLEAN NOT NULL,
		attempted_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_auth_attempts_session_id ON auth_attempts(session_id);

	CREATE TABLE IF NOT EXISTS stream_events (
		id SERIAL PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL,
		event VARCHAR(32) NOT NULL, -- start, stop, quality_change
		detail VARCHAR(64),
		occurred_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_stream_events_session_id ON stream_events(session_id);
	`

	_, err := a.db.Exec(schema)
	return err
}

// SaveSession records a newly authenticated session.
func (a *AuditLog) SaveSession(token, sessionID, remoteAddr string, expiresAt time.Time) error {
	query := `
		INSERT INTO sessions (session_token, session_id, remote_addr, created_at, expires_at)
		VALUES ($1, $2, $3, NOW(), $4)
		ON CONFLICT (session_token) DO NOTHING
	`
	_, err := a.db.Exec(query, token, sessionID, remoteAddr, expiresAt)
	return err
}

// CloseSession marks a session as ended.
func (a *AuditLog) CloseSession(token string) error {
	query := `UPDATE sessions SET closed_at = NOW() WHERE session_token = $1`
	_, err := a.db.Exec(query, token)
	return err
}

// GetSession retrieves a session's owning session ID and expiry by
// token.
func (a *AuditLog) GetSession(token string) (sessionID string, expiresAt time.Time, err error) {
	query := `SELECT session_id, expires_at FROM sessions WHERE session_token = $1`
	err = a.db.QueryRow(query, token).Scan(&sessionID, &expiresAt)
	if err == sql.ErrNoRows {
		return "", time.Time{}, fmt.Errorf("session not found")
	}
	return
}

// DeleteExpiredSessions removes sessions whose expiry has passed.
func (a *AuditLog) DeleteExpiredSessions() (int, error) {
	query := `DELETE FROM sessions WHERE expires_at < NOW()`
	result, err := a.db.Exec(query)
	if err != nil {
		return 0, err
	}
	rowsAffected, err := result.RowsAffected()
	return int(rowsAffected), err
}

// RecordAuthAttempt logs an access-code auth attempt, successful or
// not, for lockout/rate-limit accounting.
func (a *AuditLog) RecordAuthAttempt(sessionID, remoteAddr string, success bool) error {
	query := `
		INSERT INTO auth_attempts (session_id, remote_addr, success, attempted_at)
		VALUES ($1, $2, $3, NOW())
	`
	_, err := a.db.Exec(query, sessionID, remoteAddr, success)
	return err
}

// RecentFailedAttempts counts failed auth attempts for a session ID
// within the given window, for lockout decisions.
func (a *AuditLog) RecentFailedAttempts(sessionID string, within time.Duration) (int, error) {
	query := `
		SELECT COUNT(*) FROM auth_attempts
		WHERE session_id = $1 AND success = false AND attempted_at > $2
	`
	var count int
	err := a.db.QueryRow(query, sessionID, time.Now().Add(-within)).Scan(&count)
	return count, err
}

// RecordStreamEvent logs a stream lifecycle event (start, stop,
// quality_change) for a session.
func (a *AuditLog) RecordStreamEvent(sessionID, event, detail string) error {
	query := `
		INSERT INTO stream_events (session_id, event, detail, occurred_at)
		VALUES ($1, $2, $3, NOW())
	`
	_, err := a.db.Exec(query, sessionID, event, detail)
	return err
}

// GetStats returns audit-table row counts.
func (a *AuditLog) GetStats() (map[string]interface{}, error) {
	var totalSessions, activeSessions, authAttempts, streamEvents int

	a.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&totalSessions)
	a.db.QueryRow("SELECT COUNT(*) FROM sessions WHERE closed_at IS NULL AND expires_at > NOW()").Scan(&activeSessions)
	a.db.QueryRow("SELECT COUNT(*) FROM auth_attempts").Scan(&authAttempts)
	a.db.QueryRow("SELECT COUNT(*) FROM stream_events").Scan(&streamEvents)

	return map[string]interface{}{
		"total_sessions":  totalSessions,
		"active_sessions": activeSessions,
		"auth_attempts":   authAttempts,
		"stream_events":   streamEvents,
	}, nil
}

// Close closes the database connection.
func (a *AuditLog) Close() error {
	log.Println("Closing PostgreSQL audit log connection")
	return a.db.Close()
}
