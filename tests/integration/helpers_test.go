//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/congdinh/todo-backend/internal/testutil"
	"github.com/stretchr/testify/require"
)

const testPassword = "Password123"

// userResult is the decoded shape of a {"data": user} response.
type userResult struct {
	Data struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
		Active      bool   `json:"active"`
	} `json:"data"`
}

// todoResult is the decoded shape of a {"data": todo} response.
type todoResult struct {
	Data struct {
		ID          string  `json:"id"`
		OwnerID     string  `json:"owner_id"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Status      string  `json:"status"`
		Priority    *string `json:"priority"`
		DueDate     *string `json:"due_date"`
		DeletedAt   *string `json:"deleted_at"`
	} `json:"data"`
}

// pageResult is the decoded shape of a {"data": page} response.
type pageResult struct {
	Data struct {
		Content []struct {
			ID        string  `json:"id"`
			OwnerID   string  `json:"owner_id"`
			Title     string  `json:"title"`
			Status    string  `json:"status"`
			Priority  *string `json:"priority"`
			DueDate   *string `json:"due_date"`
			DeletedAt *string `json:"deleted_at"`
		} `json:"content"`
		TotalElements int64 `json:"totalElements"`
		TotalPages    int   `json:"totalPages"`
		Page          int   `json:"page"`
		Size          int   `json:"size"`
	} `json:"data"`
}

// registerUser registers a fresh account and returns its id and email.
func registerUser(t *testing.T, client *testutil.Client, prefix string) (id, email string) {
	t.Helper()

	email = testutil.RandomEmail(prefix)
	resp, err := client.POST("/api/v1/auth/register", map[string]string{
		"email":        email,
		"password":     testPassword,
		"display_name": "Test User",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result userResult
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID, email
}

// registerAndLogin registers a fresh account and logs the client in as it.
func registerAndLogin(t *testing.T, client *testutil.Client, prefix string) (id, email string) {
	t.Helper()

	id, email = registerUser(t, client, prefix)
	client.LoginAs(t, email, testPassword)
	return id, email
}

// createTodo creates a todo for the logged-in user and returns its ID.
func createTodo(t *testing.T, client *testutil.Client, title string, extra map[string]interface{}) string {
	t.Helper()

	payload := map[string]interface{}{"title": title}
	for k, v := range extra {
		payload[k] = v
	}

	resp, err := client.POST("/api/v1/todos", payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result todoResult
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID
}

// getTodo fetches a todo by ID.
func getTodo(t *testing.T, client *testutil.Client, id string) todoResult {
	t.Helper()

	resp, err := client.GET("/api/v1/todos/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result todoResult
	testutil.DecodeJSON(t, resp, &result)
	return result
}

// listTodos fetches a page of the current user's todos.
func listTodos(t *testing.T, client *testutil.Client, query string) pageResult {
	t.Helper()

	path := "/api/v1/todos"
	if query != "" {
		path += "?" + query
	}

	resp, err := client.GET(path)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result pageResult
	testutil.DecodeJSON(t, resp, &result)
	return result
}
