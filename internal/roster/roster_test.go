package roster

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewmate-app/crewmate/internal/docstore"
	"github.com/crewmate-app/crewmate/internal/persona"
)

func setup(t *testing.T) (*Registry, *persona.Catalog) {
	t.Helper()
	logger := zerolog.Nop()
	ds := docstore.NewMemoryStore(logger)
	cat, err := persona.NewCatalog(persona.Defaults())
	require.NoError(t, err)
	return NewRegistry(ds, logger), cat
}

func TestInitialize_CreatesPersonasPlusOwner(t *testing.T) {
	r, cat := setup(t)
	ctx := context.Background()

	n, err := r.Initialize(ctx, "p1", "user-1", "Hanta", cat)
	require.NoError(t, err)
	assert.Equal(t, 4, n) // 3 personas + owner

	teammates, err := r.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, teammates, 4)

	for _, tm := range teammates {
		if tm.Type == TypeAI {
			// config present iff type == ai
			require.NotNil(t, tm.Config, "AI teammate %s must carry config", tm.ID)
			assert.Equal(t, tm.Config.MaxMessagesPerDay, tm.State.MessagesLeftToday)
			assert.Equal(t, StatusOffline, tm.State.Status)
		} else {
			assert.Nil(t, tm.Config, "human teammate must not carry config")
			assert.Equal(t, StatusOnline, tm.State.Status)
		}
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	r, cat := setup(t)
	ctx := context.Background()

	_, err := r.Initialize(ctx, "p1", "user-1", "Hanta", cat)
	require.NoError(t, err)

	n, err := r.Initialize(ctx, "p1", "user-1", "Hanta", cat)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	teammates, err := r.List(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, teammates, 4)
}

func TestInitialize_ProjectIsolation(t *testing.T) {
	r, cat := setup(t)
	ctx := context.Background()

	_, err := r.Initialize(ctx, "p1", "u1", "A", cat)
	require.NoError(t, err)
	n, err := r.Initialize(ctx, "p2", "u2", "B", cat)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestGet_MissingReturnsNil(t *testing.T) {
	r, _ := setup(t)
	tm, err := r.Get(context.Background(), "p1", "ghost")
	require.NoError(t, err)
	assert.Nil(t, tm)
}

func TestRecordReply_DecrementsQuotaAndBumpsStats(t *testing.T) {
	r, cat := setup(t)
	ctx := context.Background()
	_, err := r.Initialize(ctx, "p1", "u1", "A", cat)
	require.NoError(t, err)

	before, err := r.Get(ctx, "p1", "rasoa")
	require.NoError(t, err)

	require.NoError(t, r.RecordReply(ctx, "p1", "rasoa", 2))

	after, err := r.Get(ctx, "p1", "rasoa")
	require.NoError(t, err)
	assert.Equal(t, before.State.MessagesLeftToday-1, after.State.MessagesLeftToday)
	assert.Equal(t, before.Stats.MessagesSent+1, after.Stats.MessagesSent)
	assert.Equal(t, StatusOnline, after.State.Status)
	assert.Equal(t, 2, after.State.LastActiveDay)
	assert.NotZero(t, after.State.LastActive)
}

func TestRefreshDailyQuota_RefillsOnlyStaleAI(t *testing.T) {
	r, cat := setup(t)
	ctx := context.Background()
	_, err := r.Initialize(ctx, "p1", "u1", "A", cat)
	require.NoError(t, err)

	// burn some quota on day 1
	require.NoError(t, r.RecordReply(ctx, "p1", "rasoa", 1))
	require.NoError(t, r.RecordReply(ctx, "p1", "rasoa", 1))

	require.NoError(t, r.RefreshDailyQuota(ctx, "p1", 2))

	tm, err := r.Get(ctx, "p1", "rasoa")
	require.NoError(t, err)
	assert.Equal(t, tm.Config.MaxMessagesPerDay, tm.State.MessagesLeftToday)
	assert.Equal(t, 2, tm.State.LastActiveDay)

	// refreshing the same day again changes nothing
	require.NoError(t, r.RecordReply(ctx, "p1", "rasoa", 2))
	require.NoError(t, r.RefreshDailyQuota(ctx, "p1", 2))
	tm, err = r.Get(ctx, "p1", "rasoa")
	require.NoError(t, err)
	assert.Equal(t, tm.Config.MaxMessagesPerDay-1, tm.State.MessagesLeftToday)
}

func TestUpdateState_DottedPatch(t *testing.T) {
	r, cat := setup(t)
	ctx := context.Background()
	_, err := r.Initialize(ctx, "p1", "u1", "A", cat)
	require.NoError(t, err)

	err = r.UpdateState(ctx, "p1", "rakoto", []docstore.PatchOp{
		docstore.SetField("state.currentTask", "task-9"),
		{Path: "state.assignedTasks", Op: docstore.PatchArrayUnion, Value: "task-9"},
	})
	require.NoError(t, err)

	tm, err := r.Get(ctx, "p1", "rakoto")
	require.NoError(t, err)
	assert.Equal(t, "task-9", tm.State.CurrentTask)
	assert.Equal(t, []string{"task-9"}, tm.State.AssignedTasks)
}
