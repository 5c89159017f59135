package todos

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/congdinh/todo-backend/internal/domain"
	"github.com/congdinh/todo-backend/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the todos module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new todos handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterProtectedRoutes registers routes that require authentication.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Route("/todos", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Patch("/{id}/toggle", h.Toggle)
		r.Delete("/{id}", h.Delete)
	})
}

// RegisterAdminRoutes registers routes that require the admin role.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/todos", h.AdminList)
}

// TodoRequest represents a create request body.
type TodoRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=2000"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

func (req *TodoRequest) priority() *domain.TodoPriority {
	if req.Priority == nil {
		return nil
	}
	p := domain.TodoPriority(*req.Priority)
	return &p
}

func (req *TodoRequest) dueDate() *time.Time {
	if req.DueDate == nil {
		return nil
	}
	// validated by the datetime tag
	d, err := time.ParseInLocation(time.DateOnly, *req.DueDate, time.UTC)
	if err != nil {
		return nil
	}
	return &d
}

// Create handles POST /todos.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req TodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.respondValidationError(w, err)
		return
	}

	todo, err := h.service.Create(r.Context(), httputil.GetUserID(r.Context()), CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.priority(),
		DueDate:     req.dueDate(),
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, todo)
}

// Get handles GET /todos/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	todo, err := h.service.Get(r.Context(), httputil.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, todo)
}

// UpdateTodoRequest represents a partial update body. Omitted fields
// keep their current value; an empty priority or due_date clears the
// field.
type UpdateTodoRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

func (req *UpdateTodoRequest) input() (UpdateInput, error) {
	input := UpdateInput{
		Title:       req.Title,
		Description: req.Description,
	}

	if req.Priority != nil {
		if *req.Priority == "" {
			input.ClearPriority = true
		} else {
			p := domain.TodoPriority(*req.Priority)
			input.Priority = &p
		}
	}

	if req.DueDate != nil {
		if *req.DueDate == "" {
			input.ClearDueDate = true
		} else {
			d, err := time.ParseInLocation(time.DateOnly, *req.DueDate, time.UTC)
			if err != nil {
				return input, err
			}
			input.DueDate = &d
		}
	}

	return input, nil
}

// Update handles PUT /todos/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.respondValidationError(w, err)
		return
	}

	input, err := req.input()
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid due_date")
		return
	}

	todo, err := h.service.Update(r.Context(), httputil.GetUserID(r.Context()), chi.URLParam(r, "id"), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, todo)
}

// Toggle handles PATCH /todos/{id}/toggle.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	todo, err := h.service.Toggle(r.Context(), httputil.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, todo)
}

// Delete handles DELETE /todos/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), httputil.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListResponse is one page of todos. The envelope mirrors the page
// shape most task clients already consume.
type ListResponse struct {
	Content       []domain.Todo `json:"content"`
	TotalElements int64         `json:"totalElements"`
	TotalPages    int           `json:"totalPages"`
	Page          int           `json:"page"`
	Size          int           `json:"size"`
}

// List handles GET /todos.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	query, err := h.parseSearchQuery(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	query.OwnerID = httputil.GetUserID(r.Context())

	h.respondPage(w, r, query)
}

// AdminList handles GET /admin/todos. Unlike List it reads across all
// owners and can surface soft-deleted rows.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	query, err := h.parseSearchQuery(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	query.OwnerID = r.URL.Query().Get("ownerId")
	query.IncludeDeleted = r.URL.Query().Get("includeDeleted") == "true"

	h.respondPage(w, r, query)
}

func (h *Handler) respondPage(w http.ResponseWriter, r *http.Request, query SearchQuery) {
	page, err := h.service.List(r.Context(), query)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, ListResponse{
		Content:       page.Items,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
		Page:          page.Page,
		Size:          page.Size,
	})
}

func (h *Handler) parseSearchQuery(r *http.Request) (SearchQuery, error) {
	q := r.URL.Query()
	var query SearchQuery

	if s := q.Get("status"); s != "" {
		status := domain.TodoStatus(s)
		if !status.IsValid() {
			return query, errors.New("invalid status filter")
		}
		query.Status = &status
	}

	if p := q.Get("priority"); p != "" {
		for _, part := range strings.Split(p, ",") {
			priority := domain.TodoPriority(strings.TrimSpace(part))
			if !priority.IsValid() {
				return query, errors.New("invalid priority filter")
			}
			query.Priorities = append(query.Priorities, priority)
		}
	}

	query.Text = strings.TrimSpace(q.Get("search"))

	if d := q.Get("dueBefore"); d != "" {
		t, err := time.ParseInLocation(time.DateOnly, d, time.UTC)
		if err != nil {
			return query, errors.New("invalid dueBefore date")
		}
		query.DueBefore = &t
	}

	if d := q.Get("dueAfter"); d != "" {
		t, err := time.ParseInLocation(time.DateOnly, d, time.UTC)
		if err != nil {
			return query, errors.New("invalid dueAfter date")
		}
		query.DueAfter = &t
	}

	page := 0
	if p := q.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return query, errors.New("invalid page")
		}
		page = n
	}

	query.Limit = DefaultLimit
	if s := q.Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return query, errors.New("invalid size")
		}
		query.Limit = n
	}
	if query.Limit > MaxLimit {
		query.Limit = MaxLimit
	}
	query.Offset = page * query.Limit

	query.SortBy = q.Get("sortBy")
	query.SortDir = q.Get("sortDir")
	if query.SortBy != "" {
		switch query.SortBy {
		case SortByCreatedAt, SortByDueDate, SortByTitle:
		default:
			return query, errors.New("invalid sortBy field")
		}
	}
	if query.SortDir != "" && query.SortDir != SortAsc && query.SortDir != SortDesc {
		return query, errors.New("invalid sortDir")
	}

	return query, nil
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"message": message},
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func (h *Handler) respondValidationError(w http.ResponseWriter, err error) {
	var details []map[string]string
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			details = append(details, map[string]string{
				"field":   e.Field(),
				"message": e.Tag(),
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": "validation error",
			"details": details,
		},
	}); err != nil {
		slog.Error("failed to encode validation error response", "error", err)
	}
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		h.respondError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, ErrEmptyUpdate):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrTodoNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("internal error", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}
