package tasks

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewmate-app/crewmate/internal/docstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ds := docstore.NewMemoryStore(zerolog.Nop())
	t.Cleanup(func() { ds.Close() })
	return NewStore(ds, zerolog.Nop())
}

func TestCreateDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tk, err := s.Create(ctx, "p1", CreateInput{Title: "wire login"})
	require.NoError(t, err)
	require.NotEmpty(t, tk.ID)
	assert.Equal(t, StatusTodo, tk.Status)
	assert.Equal(t, 2, tk.Priority)
	assert.NotZero(t, tk.CreatedAt)

	got, err := s.Get(ctx, "p1", tk.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tk.ID, got.ID)
	assert.Equal(t, "wire login", got.Title)
}

func TestCreateValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "p1", CreateInput{})
	assert.Error(t, err)

	_, err = s.Create(ctx, "p1", CreateInput{Title: "x", Status: "blocked"})
	assert.Error(t, err)
}

func TestListOrderedByCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := s.Create(ctx, "p1", CreateInput{Title: title})
		require.NoError(t, err)
	}

	list, err := s.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "first", list[0].Title)
	assert.Equal(t, "third", list[2].Title)
}

func TestUpdateStatusStampsCompletion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tk, err := s.Create(ctx, "p1", CreateInput{Title: "ship it"})
	require.NoError(t, err)

	done := StatusDone
	got, err := s.Update(ctx, "p1", tk.ID, UpdateInput{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, got.Status)
	assert.NotZero(t, got.CompletedAt)

	// moving out of done clears the stamp
	todo := StatusTodo
	got, err = s.Update(ctx, "p1", tk.ID, UpdateInput{Status: &todo})
	require.NoError(t, err)
	assert.Equal(t, StatusTodo, got.Status)
	assert.Zero(t, got.CompletedAt)
}

func TestUpdateRejectsBadInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tk, err := s.Create(ctx, "p1", CreateInput{Title: "x"})
	require.NoError(t, err)

	bad := "later"
	_, err = s.Update(ctx, "p1", tk.ID, UpdateInput{Status: &bad})
	assert.Error(t, err)

	p := 9
	_, err = s.Update(ctx, "p1", tk.ID, UpdateInput{Priority: &p})
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tk, err := s.Create(ctx, "p1", CreateInput{Title: "temp"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "p1", tk.ID))

	got, err := s.Get(ctx, "p1", tk.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProjectIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "p1", CreateInput{Title: "only in p1"})
	require.NoError(t, err)

	list, err := s.List(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, list)
}
