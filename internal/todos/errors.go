package todos

import "errors"

// Service errors.
var (
	ErrTodoNotFound = errors.New("todo not found")
	ErrEmptyUpdate  = errors.New("at least one field required")
)
