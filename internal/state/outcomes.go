package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// AppendOutcome records one completed task execution. Outcomes are
// append-only; there is no update path.
func (db *DB) AppendOutcome(o *models.Outcome) error {
	_, err := db.conn.Exec(`
		INSERT INTO outcomes (id, directive_id, task_id, agent_id, task_description,
			success, cost, duration_ms, defect_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ID,
		o.DirectiveID,
		o.TaskID,
		o.AgentID,
		o.TaskDescription,
		boolToInt(o.Success),
		o.Cost,
		o.Duration.Milliseconds(),
		o.DefectCount,
		formatTime(o.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// GetOutcome retrieves an outcome by ID, or nil if not found.
func (db *DB) GetOutcome(id string) (*models.Outcome, error) {
	rows, err := db.conn.Query(outcomeSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("query outcome: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanOutcome(rows)
}

// ListOutcomes returns the most recent outcomes up to limit, newest first.
func (db *DB) ListOutcomes(limit int) ([]*models.Outcome, error) {
	rows, err := db.conn.Query(outcomeSelect+" ORDER BY created_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()
	return collectOutcomes(rows)
}

// ListOutcomesByAgent returns the most recent outcomes for one agent.
func (db *DB) ListOutcomesByAgent(agentID string, limit int) ([]*models.Outcome, error) {
	rows, err := db.conn.Query(outcomeSelect+" WHERE agent_id = ? ORDER BY created_at DESC, id DESC LIMIT ?", agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list outcomes by agent: %w", err)
	}
	defer rows.Close()
	return collectOutcomes(rows)
}

// CountOutcomes returns the total number of recorded outcomes.
func (db *DB) CountOutcomes() (int, error) {
	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM outcomes").Scan(&count); err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	return count, nil
}

// CountOutcomesByAgent returns the number of recorded outcomes for one agent.
func (db *DB) CountOutcomesByAgent(agentID string) (int, error) {
	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM outcomes WHERE agent_id = ?", agentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count outcomes by agent: %w", err)
	}
	return count, nil
}

const outcomeSelect = `
	SELECT id, directive_id, task_id, agent_id, task_description,
		success, cost, duration_ms, defect_count, created_at
	FROM outcomes`

func collectOutcomes(rows *sql.Rows) ([]*models.Outcome, error) {
	var outcomes []*models.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

func scanOutcome(s scanner) (*models.Outcome, error) {
	var (
		o          models.Outcome
		success    int
		durationMS int64
		createdAt  string
	)
	err := s.Scan(
		&o.ID, &o.DirectiveID, &o.TaskID, &o.AgentID, &o.TaskDescription,
		&success, &o.Cost, &durationMS, &o.DefectCount, &createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan outcome: %w", err)
	}
	o.Success = success != 0
	o.Duration = time.Duration(durationMS) * time.Millisecond
	o.CreatedAt, _ = parseTime(createdAt)
	return &o, nil
}
