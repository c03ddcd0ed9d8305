// Package storagetest holds behavior checks every storage.Storage
// implementation must pass.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a fresh store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, newStore(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("Isolation", func(t *testing.T) { testIsolation(t, newStore(t)) })
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func weeklyTask(id string) *storage.Task {
	rule := recurrence.NewRule(recurrence.Weekly).
		WithDaysOfWeek(time.Monday, time.Wednesday, time.Friday).
		EndsOn(base.AddDate(0, 2, 0))
	task := storage.NewMockRecurringTask(id, "Gym", base, rule)
	task.Notes = "leg day"
	return task
}

func testCreateAndGet(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	task := weeklyTask("t1")
	completedAt := base.Add(time.Hour)
	task.CompletedAt = &completedAt

	require.NoError(t, s.CreateTask(ctx, task))

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, task.Kind, got.Kind)
	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, task.Notes, got.Notes)
	assert.True(t, task.DueAt.Equal(got.DueAt))
	assert.True(t, task.Anchor.Equal(got.Anchor))
	assert.True(t, task.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.CompletedAt)
	assert.True(t, completedAt.Equal(*got.CompletedAt))
	require.NotNil(t, got.Recurrence)
	assert.True(t, task.Recurrence.Equal(*got.Recurrence), "rule %s came back as %s", task.Recurrence, got.Recurrence)

	_, err = s.GetTask(ctx, "missing")
	assert.True(t, storage.IsNotFound(err), "got %v", err)
}

func testCreateDuplicate(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateTask(ctx, weeklyTask("dup")))

	err := s.CreateTask(ctx, weeklyTask("dup"))
	assert.True(t, storage.IsType(err, storage.ErrAlreadyExists), "got %v", err)

	err = s.CreateTask(ctx, &storage.Task{Title: "no id"})
	assert.True(t, storage.IsType(err, storage.ErrInvalidInput), "got %v", err)
}

func testUpdate(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	task := weeklyTask("u1")
	require.NoError(t, s.CreateTask(ctx, task))

	task.Title = "Swim"
	task.Recurrence = nil
	task.Completed = true
	task.DueAt = base.Add(48 * time.Hour)
	require.NoError(t, s.UpdateTask(ctx, task))

	got, err := s.GetTask(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Swim", got.Title)
	assert.Nil(t, got.Recurrence)
	assert.True(t, got.Completed)
	assert.True(t, base.Add(48*time.Hour).Equal(got.DueAt))

	err = s.UpdateTask(ctx, weeklyTask("ghost"))
	assert.True(t, storage.IsNotFound(err), "got %v", err)
}

func testDelete(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateTask(ctx, weeklyTask("d1")))

	require.NoError(t, s.DeleteTask(ctx, "d1"))
	_, err := s.GetTask(ctx, "d1")
	assert.True(t, storage.IsNotFound(err))

	assert.True(t, storage.IsNotFound(s.DeleteTask(ctx, "d1")))
}

func testList(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		task := storage.NewMockTask(fmt.Sprintf("l%d", i), "task", base.Add(time.Duration(4-i)*time.Hour))
		if i == 0 {
			task.Completed = true
		}
		if i == 1 {
			task.Kind = storage.KindCountdown
		}
		require.NoError(t, s.CreateTask(ctx, task))
	}
	require.NoError(t, s.CreateTask(ctx, weeklyTask("l5")))

	ids := func(tasks []*storage.Task) []string {
		out := []string{}
		for _, task := range tasks {
			out = append(out, task.ID)
		}
		return out
	}

	all, err := s.ListTasks(ctx, storage.ListOptions{})
	require.NoError(t, err)
	// l5 is due at base, like l4, and sorts after it by id
	assert.Equal(t, []string{"l4", "l5", "l3", "l2", "l1"}, ids(all))

	withDone, err := s.ListTasks(ctx, storage.ListOptions{IncludeCompleted: true, Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "l0"}, ids(withDone))

	from, to := base.Add(time.Hour), base.Add(3*time.Hour)
	window, err := s.ListTasks(ctx, storage.ListOptions{DueFrom: &from, DueTo: &to})
	require.NoError(t, err)
	assert.Equal(t, []string{"l3", "l2", "l1"}, ids(window))

	countdowns, err := s.ListTasks(ctx, storage.ListOptions{Kind: storage.KindCountdown})
	require.NoError(t, err)
	assert.Equal(t, []string{"l1"}, ids(countdowns))

	recurring, err := s.ListTasks(ctx, storage.ListOptions{OnlyRecurring: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"l5"}, ids(recurring))
}

func testIsolation(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	task := weeklyTask("i1")
	require.NoError(t, s.CreateTask(ctx, task))

	task.Title = "mutated after create"
	got, err := s.GetTask(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Gym", got.Title)

	got.Title = "mutated after get"
	again, err := s.GetTask(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Gym", again.Title)
}
