package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concord-chat/devchat/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	acc := models.NewAccount("a@b.com")
	acc.PasswordHash = "hash"
	require.NoError(t, db.CreateAccount(ctx, acc))

	dup := models.NewAccount("a@b.com")
	dup.PasswordHash = "hash"
	require.ErrorIs(t, db.CreateAccount(ctx, dup), ErrEmailTaken)

	got, err := db.GetAccountByEmail(ctx, "A@B.COM")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Empty(t, got.DisplayName)

	require.NoError(t, db.UpdateAccountProfile(ctx, acc.ID, "alice", "http://x"))
	got, err = db.GetAccountByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.DisplayName)
	assert.Equal(t, "http://x", got.PhotoURL)

	_, err = db.GetAccountByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.UpdateAccountProfile(ctx, "missing", "x", "y"), ErrNotFound)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	acc := models.NewAccount("a@b.com")
	acc.PasswordHash = "hash"
	require.NoError(t, db.CreateAccount(ctx, acc))

	sid, err := db.CreateSession(ctx, acc.ID, "test", time.Now().Add(time.Hour))
	require.NoError(t, err)

	ok, err := db.SessionValid(ctx, sid, acc.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.SessionValid(ctx, sid, "someone-else")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.DeleteSession(ctx, sid))
	ok, err = db.SessionValid(ctx, sid, acc.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = db.CreateSession(ctx, acc.ID, "test", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	n, err := db.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPutUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.PutUser(ctx, "u1", models.UserRecord{Name: "alice", Avatar: "a1"}))
	require.NoError(t, db.PutUser(ctx, "u1", models.UserRecord{Name: "alice2", Avatar: "a2"}))

	rec, err := db.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.UserRecord{Name: "alice2", Avatar: "a2"}, *rec)

	_, err = db.GetUser(ctx, "u2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendChannel_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	creator := models.Creator{Name: "alice", Avatar: "a1"}

	seq1, inserted, err := db.AppendChannel(ctx, models.NewChannel("k1", "general", "talk", creator), "u1")
	require.NoError(t, err)
	assert.True(t, inserted)

	_, inserted, err = db.AppendChannel(ctx, models.NewChannel("k1", "changed", "changed", creator), "u1")
	require.NoError(t, err)
	assert.False(t, inserted)

	seq2, inserted, err := db.AppendChannel(ctx, models.NewChannel("k2", "random", "off topic", creator), "u1")
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Greater(t, seq2, seq1)

	all, err := db.ListChannels(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "k1", all[0].Channel.ID)
	assert.Equal(t, "general", all[0].Channel.Name)
	assert.Equal(t, creator, all[0].Channel.CreatedBy)
	assert.Equal(t, "k2", all[1].Channel.ID)

	n, err := db.CountChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMigrationsReapply(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	ch := models.NewChannel("k1", "general", "talk", models.Creator{Name: "alice"})
	_, _, err := db.AppendChannel(ctx, ch, "uid")
	require.NoError(t, err)

	// a second open of the same database finds the schema current
	again, err := New(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	defer again.Close()

	n, err := again.CountChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var version int64
	require.NoError(t, again.QueryRowContext(ctx, `SELECT MAX(version_id) FROM goose_db_version`).Scan(&version))
	assert.Equal(t, int64(2), version)
}
