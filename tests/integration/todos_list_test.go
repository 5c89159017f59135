//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/congdinh/todo-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodosList_Pagination(t *testing.T) {
	client := newTestClient(t)
	registerAndLogin(t, client, "page")

	for i := 0; i < 25; i++ {
		createTodo(t, client, fmt.Sprintf("Task %02d", i), nil)
	}

	// Default page size is 20.
	page := listTodos(t, client, "")
	assert.Equal(t, int64(25), page.Data.TotalElements)
	assert.Equal(t, 2, page.Data.TotalPages)
	assert.Equal(t, 0, page.Data.Page)
	assert.Equal(t, 20, page.Data.Size)
	assert.Len(t, page.Data.Content, 20)

	// Second page holds the remainder.
	page = listTodos(t, client, "page=1")
	assert.Equal(t, 1, page.Data.Page)
	assert.Len(t, page.Data.Content, 5)

	// Explicit page size.
	page = listTodos(t, client, "size=10&page=2")
	assert.Equal(t, 3, page.Data.TotalPages)
	assert.Len(t, page.Data.Content, 5)

	// Beyond the last page is empty, not an error.
	page = listTodos(t, client, "page=99")
	assert.Empty(t, page.Data.Content)
	assert.Equal(t, int64(25), page.Data.TotalElements)
}

func TestTodosList_SizeCapped(t *testing.T) {
	client := newTestClient(t)
	registerAndLogin(t, client, "cap")

	createTodo(t, client, "one", nil)

	// Oversized requests are clamped to the maximum, not rejected.
	resp, err := client.WithoutValidation().GET("/api/v1/todos?size=500")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result pageResult
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, 100, result.Data.Size)
}

func TestTodosList_FilterByStatus(t *testing.T) {
	client := newTestClient(t)
	registerAndLogin(t, client, "status")

	createTodo(t, client, "open task", nil)
	doneID := createTodo(t, client, "done task", nil)

	resp, err := client.PATCH("/api/v1/todos/"+doneID+"/toggle", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	page := listTodos(t, client, "status=completed")
	require.Len(t, page.Data.Content, 1)
	assert.Equal(t, doneID, page.Data.Content[0].ID)

	page = listTodos(t, client, "status=incomplete")
	require.Len(t, page.Data.Content, 1)
	assert.Equal(t, "open task", page.Data.Content[0].Title)
}

func TestTodosList_FilterByPriority(t *testing.T) {
	client := newTestClient(t)
	registerAndLogin(t, client, "prio")

	createTodo(t, client, "low task", map[string]interface{}{"priority": "low"})
	createTodo(t, client, "medium task", map[string]interface{}{"priority": "medium"})
	createTodo(t, client, "high task", map[string]interface{}{"priority": "high"})
	createTodo(t, client, "no priority", nil)

	page := listTodos(t, client, "priority=high")
	require.Len(t, page.Data.Content, 1)
	assert.Equal(t, "high task", page.Data.Content[0].Title)

	// Comma-separated values act as a set.
	page = listTodos(t, client, "priority=low,high")
	assert.Equal(t, int64(2), page.Data.TotalElements)
}

func TestTodosList_Search(t *testing.T) {
	client := newTestClient(t)
	registerAndLogin(t, client, "search")

	createTodo(t, client, "Buy groceries", map[string]interface{}{"description": "milk and eggs"})
	createTodo(t, client, "Call dentist", nil)

	// Case-insensitive title match.
	page := listTodos(t, client, "search=GROCERIES")
	require.Len(t, page.Data.Content, 1)
	assert.Equal(t, "Buy groceries", page.Data.Content[0].Title)

	// Description matches too.
	page = listTodos(t, client, "search=eggs")
	require.Len(t, page.Data.Content, 1)

	// LIKE metacharacters are literals, not wildcards.
	page = listTodos(t, client, "search=%25")
	assert.Empty(t, page.Data.Content)
}

func TestTodosList_DueDateRange(t *testing.T) {
	client := newTestClient(t)
	registerAndLogin(t, client, "range")

	createTodo(t, client, "soon", map[string]interface{}{"due_date": futureDate(2)})
	createTodo(t, client, "later", map[string]interface{}{"due_date": futureDate(30)})
	createTodo(t, client, "undated", nil)

	page := listTodos(t, client, "dueBefore="+futureDate(10))
	require.Len(t, page.Data.Content, 1)
	assert.Equal(t, "soon", page.Data.Content[0].Title)

	page = listTodos(t, client, "dueAfter="+futureDate(10))
	require.Len(t, page.Data.Content, 1)
	assert.Equal(t, "later", page.Data.Content[0].Title)
}

func TestTodosList_Sort(t *testing.T) {
	client := newTestClient(t)
	registerAndLogin(t, client, "sort")

	createTodo(t, client, "banana", map[string]interface{}{"due_date": futureDate(5)})
	createTodo(t, client, "apple", map[string]interface{}{"due_date": futureDate(1)})
	createTodo(t, client, "cherry", nil)

	page := listTodos(t, client, "sortBy=title&sortDir=asc")
	require.Len(t, page.Data.Content, 3)
	assert.Equal(t, "apple", page.Data.Content[0].Title)
	assert.Equal(t, "banana", page.Data.Content[1].Title)
	assert.Equal(t, "cherry", page.Data.Content[2].Title)

	// Ascending due date puts undated rows last.
	page = listTodos(t, client, "sortBy=due_date&sortDir=asc")
	require.Len(t, page.Data.Content, 3)
	assert.Equal(t, "apple", page.Data.Content[0].Title)
	assert.Equal(t, "banana", page.Data.Content[1].Title)
	assert.Equal(t, "cherry", page.Data.Content[2].Title)

	// Default ordering is newest first.
	page = listTodos(t, client, "")
	require.Len(t, page.Data.Content, 3)
	assert.Equal(t, "cherry", page.Data.Content[0].Title)
}

func TestTodosList_InvalidParams(t *testing.T) {
	client := newTestClientWithoutValidation()
	registerAndLogin(t, client, "badparams")

	for _, query := range []string{
		"status=done",
		"priority=urgent",
		"page=-1",
		"size=0",
		"sortBy=password",
		"sortDir=sideways",
		"dueBefore=notadate",
	} {
		resp, err := client.GET("/api/v1/todos?" + query)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "query %q", query)
		_ = resp.Body.Close()
	}
}
