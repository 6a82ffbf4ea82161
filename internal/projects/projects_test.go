package projects

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewmate-app/crewmate/internal/docstore"
	"github.com/crewmate-app/crewmate/internal/persona"
	"github.com/crewmate-app/crewmate/internal/roster"
)

func newTestStore(t *testing.T) (*Store, *roster.Registry) {
	t.Helper()
	ds := docstore.NewMemoryStore(zerolog.Nop())
	t.Cleanup(func() { ds.Close() })
	cat, err := persona.NewCatalog(persona.Defaults())
	require.NoError(t, err)
	reg := roster.NewRegistry(ds, zerolog.Nop())
	return NewStore(ds, reg, cat, zerolog.Nop()), reg
}

func TestCreateSeedsRoster(t *testing.T) {
	s, reg := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, CreateInput{Title: "Shop", Description: "online store"}, "u1", "Owner")
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	assert.Equal(t, 1, p.CurrentDay)
	assert.Equal(t, 14, p.DurationDays)

	team, err := reg.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, team, len(persona.Defaults())+1)
}

func TestCreateRequiresTitle(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Create(context.Background(), CreateInput{}, "u1", "Owner")
	assert.Error(t, err)
}

func TestGetMissingReturnsNil(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestAdvanceDayRefillsQuota(t *testing.T) {
	s, reg := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, CreateInput{Title: "Shop", DurationDays: 5}, "u1", "Owner")
	require.NoError(t, err)

	// an AI teammate spends a message on day 1
	require.NoError(t, reg.RecordReply(ctx, p.ID, "rakoto", 1))
	before, err := reg.Get(ctx, p.ID, "rakoto")
	require.NoError(t, err)
	spent := before.State.MessagesLeftToday

	day, err := s.AdvanceDay(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, day)

	after, err := reg.Get(ctx, p.ID, "rakoto")
	require.NoError(t, err)
	assert.Greater(t, after.State.MessagesLeftToday, spent)
	assert.Equal(t, after.Config.MaxMessagesPerDay, after.State.MessagesLeftToday)
}

func TestAdvanceDayCappedAtDuration(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, CreateInput{Title: "Shop", DurationDays: 1}, "u1", "Owner")
	require.NoError(t, err)

	day, err := s.AdvanceDay(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, day)
}

func TestListByOwner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, CreateInput{Title: "Mine"}, "u1", "Owner")
	require.NoError(t, err)
	_, err = s.Create(ctx, CreateInput{Title: "Theirs"}, "u2", "Other")
	require.NoError(t, err)

	list, err := s.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Mine", list[0].Title)
}
