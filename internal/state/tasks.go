package state

import (
	"database/sql"
	"fmt"

	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// CreateTask inserts a new task.
func (db *DB) CreateTask(t *models.Task) error {
	_, err := db.conn.Exec(`
		INSERT INTO tasks (id, directive_id, title, description, depends_on, assigned_agent, status,
			essential, resources, result, error, cost, attempts, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.DirectiveID,
		nullString(t.Title),
		t.Description,
		nullString(joinIDs(t.DependsOn)),
		nullString(t.AssignedAgent),
		string(t.Status),
		boolToInt(t.Essential),
		nullString(joinIDs(t.Resources)),
		nullString(t.Result),
		nullString(t.Error),
		t.Cost,
		t.Attempts,
		formatTime(t.CreatedAt),
		formatTimePtr(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpdateTask persists mutable task fields.
func (db *DB) UpdateTask(t *models.Task) error {
	_, err := db.conn.Exec(`
		UPDATE tasks SET
			assigned_agent = ?,
			status = ?,
			result = ?,
			error = ?,
			cost = ?,
			attempts = ?,
			completed_at = ?
		WHERE id = ?
	`,
		nullString(t.AssignedAgent),
		string(t.Status),
		nullString(t.Result),
		nullString(t.Error),
		t.Cost,
		t.Attempts,
		formatTimePtr(t.CompletedAt),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID, or nil if not found.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.conn.QueryRow(taskSelect+" WHERE id = ?", id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListTasks returns all tasks for a directive.
func (db *DB) ListTasks(directiveID string) ([]*models.Task, error) {
	rows, err := db.conn.Query(taskSelect+" WHERE directive_id = ? ORDER BY created_at, id", directiveID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

const taskSelect = `
	SELECT id, directive_id, title, description, depends_on, assigned_agent, status,
		essential, resources, result, error, cost, attempts, created_at, completed_at
	FROM tasks`

// scanner abstracts *sql.Row and *sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*models.Task, error) {
	var (
		t             models.Task
		title         sql.NullString
		dependsOn     sql.NullString
		assignedAgent sql.NullString
		essential     int
		resources     sql.NullString
		result        sql.NullString
		errMsg        sql.NullString
		createdAt     string
		completedAt   sql.NullString
	)

	err := s.Scan(
		&t.ID, &t.DirectiveID, &title, &t.Description, &dependsOn, &assignedAgent,
		(*string)(&t.Status), &essential, &resources, &result, &errMsg,
		&t.Cost, &t.Attempts, &createdAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.Title = title.String
	t.DependsOn = splitIDs(dependsOn.String)
	t.AssignedAgent = assignedAgent.String
	t.Essential = essential != 0
	t.Resources = splitIDs(resources.String)
	t.Result = result.String
	t.Error = errMsg.String
	t.CreatedAt, _ = parseTime(createdAt)
	t.CompletedAt = parseNullableTime(completedAt)
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
