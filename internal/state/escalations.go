package state

import (
	"database/sql"
	"fmt"
	"time"
)

// Escalation is a dead-letter record: work the engine gave up on and
// parked for a human. Append-only.
type Escalation struct {
	// ID is the log sequence number, assigned on append.
	ID int64
	// DirectiveID is the directive the escalation belongs to.
	DirectiveID string
	// TaskID is the escalated task, empty for directive-level escalations.
	TaskID string
	// Reason describes why the work escalated.
	Reason string
	// Attempts is how many execution attempts were made before giving up.
	Attempts int
	// LastError is the final error observed, if any.
	LastError string
	// CreatedAt is when the escalation was recorded.
	CreatedAt time.Time
}

// AppendEscalation records an escalation and sets e.ID.
func (db *DB) AppendEscalation(e *Escalation) error {
	res, err := db.conn.Exec(`
		INSERT INTO escalations (directive_id, task_id, reason, attempts, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.DirectiveID, nullString(e.TaskID), e.Reason, e.Attempts,
		nullString(e.LastError), formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert escalation: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get escalation id: %w", err)
	}
	return nil
}

// ListEscalations returns all escalations for a directive, oldest first.
func (db *DB) ListEscalations(directiveID string) ([]*Escalation, error) {
	rows, err := db.conn.Query(`
		SELECT id, directive_id, task_id, reason, attempts, last_error, created_at
		FROM escalations WHERE directive_id = ? ORDER BY id`, directiveID)
	if err != nil {
		return nil, fmt.Errorf("query escalations: %w", err)
	}
	defer rows.Close()

	var escalations []*Escalation
	for rows.Next() {
		var e Escalation
		var taskID, lastError sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.DirectiveID, &taskID, &e.Reason, &e.Attempts, &lastError, &createdAt); err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		e.TaskID = taskID.String
		e.LastError = lastError.String
		e.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse escalation time: %w", err)
		}
		escalations = append(escalations, &e)
	}
	return escalations, rows.Err()
}
