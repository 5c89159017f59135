// Package postgres provides the PostgreSQL implementation of the todos repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/congdinh/todo-backend/internal/domain"
	"github.com/congdinh/todo-backend/internal/todos"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const todoColumns = "id, owner_id, title, description, status, priority, due_date, created_at, updated_at, deleted_at"

// Repository implements the todos.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new todo.
func (r *Repository) Create(ctx context.Context, todo *domain.Todo) error {
	query := `
		INSERT INTO todos (owner_id, title, description, status, priority, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		todo.OwnerID,
		todo.Title,
		todo.Description,
		todo.Status,
		todo.Priority,
		todo.DueDate,
	).Scan(&todo.ID, &todo.CreatedAt, &todo.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create todo: %w", err)
	}
	return nil
}

// GetByID retrieves a todo by id. A non-empty ownerID scopes the lookup
// to that owner, so other users' todos read as not found.
func (r *Repository) GetByID(ctx context.Context, id, ownerID string) (*domain.Todo, error) {
	query := fmt.Sprintf(`SELECT %s FROM todos WHERE id = $1`, todoColumns)
	args := []interface{}{id}

	if ownerID != "" {
		query += " AND owner_id = $2"
		args = append(args, ownerID)
	}

	todo, err := scanTodo(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, todos.ErrTodoNotFound
		}
		return nil, fmt.Errorf("get todo by id: %w", err)
	}
	return todo, nil
}

// Update replaces a todo's mutable fields.
func (r *Repository) Update(ctx context.Context, todo *domain.Todo) error {
	query := `
		UPDATE todos
		SET title = $3, description = $4, status = $5, priority = $6, due_date = $7, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		todo.ID,
		todo.OwnerID,
		todo.Title,
		todo.Description,
		todo.Status,
		todo.Priority,
		todo.DueDate,
	).Scan(&todo.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return todos.ErrTodoNotFound
		}
		return fmt.Errorf("update todo: %w", err)
	}
	return nil
}

// SoftDelete marks a todo deleted. Already deleted and missing todos
// both report ErrTodoNotFound.
func (r *Repository) SoftDelete(ctx context.Context, id, ownerID string, deletedAt time.Time) error {
	query := `
		UPDATE todos
		SET deleted_at = $3, updated_at = $3
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.Exec(ctx, query, id, ownerID, deletedAt)
	if err != nil {
		return fmt.Errorf("soft delete todo: %w", err)
	}

	if result.RowsAffected() == 0 {
		return todos.ErrTodoNotFound
	}
	return nil
}

// Search lists todos matching the query along with the total match count.
func (r *Repository) Search(ctx context.Context, query todos.SearchQuery) ([]domain.Todo, int64, error) {
	where, args := buildWhere(query)

	var total int64
	countSQL := "SELECT COUNT(*) FROM todos" + where
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count todos: %w", err)
	}

	// sort inputs are whitelisted in Normalize, never interpolated from
	// raw request values
	orderBy := fmt.Sprintf(" ORDER BY %s %s, id", query.SortBy, strings.ToUpper(query.SortDir))
	if query.SortBy == todos.SortByDueDate {
		orderBy = fmt.Sprintf(" ORDER BY due_date %s NULLS LAST, id", strings.ToUpper(query.SortDir))
	}

	listSQL := fmt.Sprintf("SELECT %s FROM todos%s%s LIMIT $%d OFFSET $%d",
		todoColumns, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, query.Limit, query.Offset)

	rows, err := r.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search todos: %w", err)
	}
	defer rows.Close()

	items, err := collectTodos(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// DueOn returns non-deleted incomplete todos due on the given calendar date.
func (r *Repository) DueOn(ctx context.Context, date time.Time) ([]domain.Todo, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM todos
		WHERE deleted_at IS NULL AND status = $1 AND due_date = $2
		ORDER BY created_at
	`, todoColumns)

	rows, err := r.db.Query(ctx, query, domain.TodoStatusIncomplete, domain.DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("list todos due on date: %w", err)
	}
	defer rows.Close()

	return collectTodos(rows)
}

// OverdueAsOf returns non-deleted incomplete todos due strictly before
// the given calendar date.
func (r *Repository) OverdueAsOf(ctx context.Context, date time.Time) ([]domain.Todo, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM todos
		WHERE deleted_at IS NULL AND status = $1 AND due_date < $2
		ORDER BY due_date, created_at
	`, todoColumns)

	rows, err := r.db.Query(ctx, query, domain.TodoStatusIncomplete, domain.DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("list overdue todos: %w", err)
	}
	defer rows.Close()

	return collectTodos(rows)
}

func buildWhere(query todos.SearchQuery) (string, []interface{}) {
	clauses := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !query.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if query.OwnerID != "" {
		clauses = append(clauses, "owner_id = "+arg(query.OwnerID))
	}
	if query.Status != nil {
		clauses = append(clauses, "status = "+arg(*query.Status))
	}
	if len(query.Priorities) > 0 {
		priorities := make([]string, len(query.Priorities))
		for i, p := range query.Priorities {
			priorities[i] = string(p)
		}
		clauses = append(clauses, "priority = ANY("+arg(priorities)+")")
	}
	if query.Text != "" {
		placeholder := arg("%" + escapeLike(query.Text) + "%")
		clauses = append(clauses, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", placeholder, placeholder))
	}
	if query.DueAfter != nil {
		clauses = append(clauses, "due_date >= "+arg(domain.DateOnly(*query.DueAfter)))
	}
	if query.DueBefore != nil {
		clauses = append(clauses, "due_date <= "+arg(domain.DateOnly(*query.DueBefore)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

func scanTodo(row pgx.Row) (*domain.Todo, error) {
	var todo domain.Todo
	err := row.Scan(
		&todo.ID,
		&todo.OwnerID,
		&todo.Title,
		&todo.Description,
		&todo.Status,
		&todo.Priority,
		&todo.DueDate,
		&todo.CreatedAt,
		&todo.UpdatedAt,
		&todo.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

func collectTodos(rows pgx.Rows) ([]domain.Todo, error) {
	items := make([]domain.Todo, 0)
	for rows.Next() {
		var todo domain.Todo
		err := rows.Scan(
			&todo.ID,
			&todo.OwnerID,
			&todo.Title,
			&todo.Description,
			&todo.Status,
			&todo.Priority,
			&todo.DueDate,
			&todo.CreatedAt,
			&todo.UpdatedAt,
			&todo.DeletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		items = append(items, todo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todos: %w", err)
	}
	return items, nil
}
