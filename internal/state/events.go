package state

import (
	"database/sql"
	"fmt"

	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// AppendCircuitEvent records one breaker transition in the reliability
// event log. The log is append-only and is the source of truth for
// breaker state reconstruction after a restart.
func (db *DB) AppendCircuitEvent(e *models.CircuitEvent) error {
	result, err := db.conn.Exec(`
		INSERT INTO circuit_events (agent_id, from_state, to_state, failure_count, reason, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		e.AgentID,
		string(e.FromState),
		string(e.ToState),
		e.FailureCount,
		nullString(e.Reason),
		formatTime(e.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("insert circuit event: %w", err)
	}
	e.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// ListCircuitEvents returns the full transition log for one agent in
// append order.
func (db *DB) ListCircuitEvents(agentID string) ([]*models.CircuitEvent, error) {
	rows, err := db.conn.Query(`
		SELECT id, agent_id, from_state, to_state, failure_count, reason, occurred_at
		FROM circuit_events WHERE agent_id = ? ORDER BY id
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list circuit events: %w", err)
	}
	defer rows.Close()
	return collectCircuitEvents(rows)
}

// ListAllCircuitEvents returns the full transition log for every agent
// in append order. Used to rebuild all breakers at startup.
func (db *DB) ListAllCircuitEvents() ([]*models.CircuitEvent, error) {
	rows, err := db.conn.Query(`
		SELECT id, agent_id, from_state, to_state, failure_count, reason, occurred_at
		FROM circuit_events ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list all circuit events: %w", err)
	}
	defer rows.Close()
	return collectCircuitEvents(rows)
}

// AgentReliability summarizes an agent's breaker history.
type AgentReliability struct {
	// AgentID is the agent the stats describe.
	AgentID string
	// Trips is how many times the circuit opened.
	Trips int
	// AvgRecovery is the mean time between open and the next close.
	AvgRecovery float64
}

// GetAgentReliability derives trip counts and mean recovery time from
// the circuit event log.
func (db *DB) GetAgentReliability(agentID string) (*AgentReliability, error) {
	events, err := db.ListCircuitEvents(agentID)
	if err != nil {
		return nil, err
	}

	stats := &AgentReliability{AgentID: agentID}
	var openedAt *models.CircuitEvent
	var totalRecovery float64
	var recoveries int

	for _, e := range events {
		switch e.ToState {
		case models.CircuitOpen:
			if e.FromState != models.CircuitOpen {
				stats.Trips++
				openedAt = e
			}
		case models.CircuitClosed:
			if openedAt != nil {
				totalRecovery += e.OccurredAt.Sub(openedAt.OccurredAt).Seconds()
				recoveries++
				openedAt = nil
			}
		}
	}
	if recoveries > 0 {
		stats.AvgRecovery = totalRecovery / float64(recoveries)
	}
	return stats, nil
}

func collectCircuitEvents(rows *sql.Rows) ([]*models.CircuitEvent, error) {
	var events []*models.CircuitEvent
	for rows.Next() {
		var (
			e          models.CircuitEvent
			reason     sql.NullString
			occurredAt string
		)
		if err := rows.Scan(
			&e.ID, &e.AgentID, (*string)(&e.FromState), (*string)(&e.ToState),
			&e.FailureCount, &reason, &occurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan circuit event: %w", err)
		}
		e.Reason = reason.String
		e.OccurredAt, _ = parseTime(occurredAt)
		events = append(events, &e)
	}
	return events, rows.Err()
}
