package console

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s1natex/todo-api-GO/internal/tasks"
)

func script(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func runScript(t *testing.T, b Backend, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	c := New(b, "Direct Client Version", script(lines...), &out)
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.NoError(t, c.Run(context.Background()))
	return out.String()
}

func newSession(t *testing.T, repo tasks.Repository) *Session {
	t.Helper()
	s, err := OpenSession(context.Background(), repo, nil)
	require.NoError(t, err)
	return s
}

func TestConsole_AddListCompleteDelete(t *testing.T) {
	repo := tasks.NewInMemoryRepo()
	s := newSession(t, repo)

	out := runScript(t, s,
		"1", "buy milk",
		"1", "call mom",
		"5", "1", "c",
		"3", "2", "call mom tonight",
		"2",
		"4", "1",
		"q",
	)

	assert.Contains(t, out, "Welcome TodoList Direct Client Version")
	assert.Equal(t, 2, strings.Count(out, "Task added successfully!"))
	assert.Contains(t, out, "Current status: Pending")
	assert.Contains(t, out, "Task marked as Complete!")
	assert.Contains(t, out, "Task updated successfully!")
	assert.Contains(t, out, "ID:1, Task:buy milk, Status:Complete, Created:2 hours ago")
	assert.Contains(t, out, "ID:2, Task:call mom tonight, Status:Pending, Created:2 hours ago, Modified:2 hours ago")
	assert.Contains(t, out, "Task deleted successfully!")

	stored, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(2), stored[0].ID)
	assert.Equal(t, "call mom tonight", stored[0].Description)
}

func TestConsole_InvalidInput(t *testing.T) {
	s := newSession(t, tasks.NewInMemoryRepo())

	out := runScript(t, s,
		"7",
		"2",
		"3", "abc",
		"4", "9",
		"5", "9",
		"q",
	)

	assert.Equal(t, 6, strings.Count(out, "q - to quit"), "an unknown choice shows the menu again")
	assert.Contains(t, out, "No todo items found.")
	assert.Contains(t, out, "Invalid ID entered.")
	assert.Equal(t, 2, strings.Count(out, "Task with ID 9 not found."))
}

func TestConsole_StopsAtEndOfInput(t *testing.T) {
	s := newSession(t, tasks.NewInMemoryRepo())
	out := runScript(t, s, "1")
	assert.Contains(t, out, "Enter task description:")
	assert.NotContains(t, out, "Task added successfully!")
}

func TestSession_AdoptsStoredIDs(t *testing.T) {
	repo, err := tasks.NewFileRepo(filepath.Join(t.TempDir(), "todo.txt"), nil)
	require.NoError(t, err)
	s := newSession(t, repo)
	ctx := context.Background()

	a, err := s.Create(ctx, "first")
	require.NoError(t, err)
	b, err := s.Create(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)

	require.NoError(t, s.SetComplete(ctx, b.ID, true))
	got, err := s.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.IsComplete)

	reopened := newSession(t, repo)
	items, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[1].IsComplete)
}

type failingSave struct {
	*tasks.InMemoryRepo
}

var errDiskFull = errors.New("disk full")

func (failingSave) Save(context.Context, []tasks.Task) ([]tasks.Task, error) {
	return nil, errDiskFull
}

func TestSession_FailedSaveLeavesSessionUnchanged(t *testing.T) {
	mem := tasks.NewInMemoryRepo()
	_, err := mem.CreateItem(context.Background(), "keep me")
	require.NoError(t, err)

	s := newSession(t, failingSave{mem})
	ctx := context.Background()

	_, err = s.Create(ctx, "lost")
	assert.ErrorIs(t, err, errDiskFull)
	assert.ErrorIs(t, s.Update(ctx, 1, "changed"), errDiskFull)
	assert.ErrorIs(t, s.Delete(ctx, 1), errDiskFull)
	assert.ErrorIs(t, s.Update(ctx, 5, "x"), tasks.ErrNotFound)

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "keep me", items[0].Description)
	assert.True(t, items[0].ModifiedAt.IsZero())

	out := runScript(t, s, "1", "boom", "q")
	assert.Contains(t, out, "Error creating task: disk full")
}
