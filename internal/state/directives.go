package state

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// CreateDirective inserts a new directive.
func (db *DB) CreateDirective(d *models.Directive) error {
	_, err := db.conn.Exec(`
		INSERT INTO directives (id, text, cost_ceiling, cost_incurred, source, status, escalation_reason, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID,
		d.Text,
		d.CostCeiling,
		d.CostIncurred,
		nullString(d.Source),
		string(d.Status),
		nullString(d.EscalationReason),
		formatTime(d.CreatedAt),
		formatTimePtr(d.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert directive: %w", err)
	}
	return nil
}

// GetDirective retrieves a directive by ID, or nil if not found.
func (db *DB) GetDirective(id string) (*models.Directive, error) {
	var (
		d                 models.Directive
		source            sql.NullString
		escalationReason  sql.NullString
		createdAt         string
		completedAt       sql.NullString
	)

	err := db.conn.QueryRow(`
		SELECT id, text, cost_ceiling, cost_incurred, source, status, escalation_reason, created_at, completed_at
		FROM directives WHERE id = ?
	`, id).Scan(
		&d.ID, &d.Text, &d.CostCeiling, &d.CostIncurred,
		&source, (*string)(&d.Status), &escalationReason, &createdAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query directive: %w", err)
	}

	d.Source = source.String
	d.EscalationReason = escalationReason.String
	d.CreatedAt, _ = parseTime(createdAt)
	d.CompletedAt = parseNullableTime(completedAt)
	return &d, nil
}

// UpdateDirective persists mutable directive fields.
func (db *DB) UpdateDirective(d *models.Directive) error {
	result, err := db.conn.Exec(`
		UPDATE directives SET
			cost_incurred = ?,
			status = ?,
			escalation_reason = ?,
			completed_at = ?
		WHERE id = ?
	`,
		d.CostIncurred,
		string(d.Status),
		nullString(d.EscalationReason),
		formatTimePtr(d.CompletedAt),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("update directive: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("directive %s not found", d.ID)
	}
	return nil
}

// ListDirectives returns directives ordered newest first, up to limit.
func (db *DB) ListDirectives(limit int) ([]*models.Directive, error) {
	rows, err := db.conn.Query(`
		SELECT id, text, cost_ceiling, cost_incurred, source, status, escalation_reason, created_at, completed_at
		FROM directives ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list directives: %w", err)
	}
	defer rows.Close()

	var directives []*models.Directive
	for rows.Next() {
		var (
			d                models.Directive
			source           sql.NullString
			escalationReason sql.NullString
			createdAt        string
			completedAt      sql.NullString
		)
		if err := rows.Scan(
			&d.ID, &d.Text, &d.CostCeiling, &d.CostIncurred,
			&source, (*string)(&d.Status), &escalationReason, &createdAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("scan directive: %w", err)
		}
		d.Source = source.String
		d.EscalationReason = escalationReason.String
		d.CreatedAt, _ = parseTime(createdAt)
		d.CompletedAt = parseNullableTime(completedAt)
		directives = append(directives, &d)
	}
	return directives, rows.Err()
}

// formatTimePtr formats an optional time for SQLite storage.
func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// joinIDs serializes an ID list for a TEXT column.
func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}

// splitIDs deserializes an ID list from a TEXT column.
func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
