package session

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/bankguard/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dbSeq atomic.Int64

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:session_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func rawKeys(t *testing.T, db *sql.DB) map[string]string {
	t.Helper()
	rows, err := db.Query(`SELECT key, value FROM metadata`)
	require.NoError(t, err)
	defer rows.Close()
	m := map[string]string{}
	for rows.Next() {
		var k string
		var v []byte
		require.NoError(t, rows.Scan(&k, &v))
		m[k] = string(v)
	}
	require.NoError(t, rows.Err())
	return m
}

func TestLoad_EmptyStoreIsLoggedOut(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t), UserKeys)

	r, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Record{}, r)
}

func TestSaveThenLoad_RoundTripsAllFields(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t), UserKeys)
	ctx := context.Background()

	at := time.UnixMilli(1_760_000_000_123)
	in := LoggedInAs("0b7c1f0e-3a53-4b8e-9f7e-6f3d2f1a9c11", at)
	in.LockedLocally = true
	require.NoError(t, s.Save(ctx, in))

	out, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, out.LoggedIn)
	assert.True(t, out.LockedLocally)
	require.NotNil(t, out.UserID)
	assert.Equal(t, "0b7c1f0e-3a53-4b8e-9f7e-6f3d2f1a9c11", *out.UserID)
	require.NotNil(t, out.LastActiveAt)
	assert.True(t, at.Equal(*out.LastActiveAt))
}

func TestSave_RejectsInvalidRecords(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t), UserKeys)
	id := "u-1"

	err := s.Save(context.Background(), Record{LockedLocally: true})
	require.ErrorIs(t, err, common.ErrValidation)

	err = s.Save(context.Background(), Record{UserID: &id})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestSave_ClearingLockRemovesKey(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db, UserKeys)
	ctx := context.Background()

	r := LoggedInAs("u-1", time.Now())
	r.LockedLocally = true
	require.NoError(t, s.Save(ctx, r))
	require.Contains(t, rawKeys(t, db), "screen_locked")

	r.LockedLocally = false
	require.NoError(t, s.Save(ctx, r))
	assert.NotContains(t, rawKeys(t, db), "screen_locked")
}

func TestSave_LoggedOutRecordClears(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db, UserKeys)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, LoggedInAs("u-1", time.Now())))
	require.NoError(t, s.Save(ctx, Record{}))
	assert.Empty(t, rawKeys(t, db))
}

func TestTouch_OnlyUpdatesLastActive(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t), UserKeys)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, LoggedInAs("u-1", time.UnixMilli(1000))))
	require.NoError(t, s.Touch(ctx, time.UnixMilli(5000)))

	r, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-1", r.User())
	assert.Equal(t, int64(5000), r.LastActiveAt.UnixMilli())
}

func TestLoad_KeysWithoutLoginFlagAreIgnored(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db, UserKeys)
	ctx := context.Background()

	require.NoError(t, s.Touch(ctx, time.Now()))
	_, err := db.Exec(`INSERT INTO metadata(key, value) VALUES ('user_id', 'stale')`)
	require.NoError(t, err)

	r, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, r.LoggedIn)
	assert.Nil(t, r.UserID)
	assert.NoError(t, r.Validate())
}

func TestClear_RemovesOnlySessionKeys(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db, UserKeys)
	ctx := context.Background()

	r := LoggedInAs("u-1", time.Now())
	r.LockedLocally = true
	require.NoError(t, s.Save(ctx, r))
	_, err := db.Exec(`INSERT INTO metadata(key, value) VALUES ('footer_email', 'x@bank.test')`)
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))

	left := rawKeys(t, db)
	assert.Equal(t, map[string]string{"footer_email": "x@bank.test"}, left)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, got.LoggedIn)
	assert.Nil(t, got.UserID)
}

func TestWipe_RemovesEverything(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db, UserKeys)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, LoggedInAs("u-1", time.Now())))
	_, err := db.Exec(`INSERT INTO metadata(key, value) VALUES ('footer_email', 'x@bank.test')`)
	require.NoError(t, err)

	require.NoError(t, s.Wipe(ctx))
	assert.Empty(t, rawKeys(t, db))
}

func TestSurfaces_DoNotShareLoginFlag(t *testing.T) {
	db := openTestDB(t)
	user := NewSQLiteStore(db, UserKeys)
	admin := NewSQLiteStore(db, AdminKeys)
	ctx := context.Background()

	require.NoError(t, admin.Save(ctx, LoggedInAs("ops@bank.test", time.Now())))

	r, err := user.Load(ctx)
	require.NoError(t, err)
	assert.False(t, r.LoggedIn)

	r, err = admin.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ops@bank.test", r.User())
}

func TestSurfaces_AdminActivityLeavesCustomerLockAlone(t *testing.T) {
	db := openTestDB(t)
	user := NewSQLiteStore(db, UserKeys)
	admin := NewSQLiteStore(db, AdminKeys)
	ctx := context.Background()

	locked := LoggedInAs("u-1", time.UnixMilli(1_000))
	locked.LockedLocally = true
	require.NoError(t, user.Save(ctx, locked))

	// Admin login, activity, timeout on the same machine.
	require.NoError(t, admin.Save(ctx, LoggedInAs("ops@bank.test", time.UnixMilli(2_000))))
	require.NoError(t, admin.Touch(ctx, time.UnixMilli(3_000)))
	require.NoError(t, admin.Clear(ctx))

	r, err := user.Load(ctx)
	require.NoError(t, err)
	assert.True(t, r.LoggedIn)
	assert.True(t, r.LockedLocally)
	assert.Equal(t, "u-1", r.User())
	require.NotNil(t, r.LastActiveAt)
	assert.Equal(t, int64(1_000), r.LastActiveAt.UnixMilli())

	a, err := admin.Load(ctx)
	require.NoError(t, err)
	assert.False(t, a.LoggedIn)
}

func TestAdminStore_HasNoScreenLock(t *testing.T) {
	db := openTestDB(t)
	admin := NewSQLiteStore(db, AdminKeys)
	ctx := context.Background()

	r := LoggedInAs("ops@bank.test", time.Now())
	r.LockedLocally = true
	require.NoError(t, admin.Save(ctx, r))

	got, err := admin.Load(ctx)
	require.NoError(t, err)
	assert.False(t, got.LockedLocally)
	assert.NotContains(t, rawKeys(t, db), "screen_locked")
}

func TestTwoStoresOnOneFile_SeeEachOthersWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.db")
	ctx := context.Background()

	db1, err := Open(ctx, path)
	require.NoError(t, err)
	defer db1.Close()
	db2, err := Open(ctx, path)
	require.NoError(t, err)
	defer db2.Close()

	tab1 := NewSQLiteStore(db1, UserKeys)
	tab2 := NewSQLiteStore(db2, UserKeys)

	require.NoError(t, tab1.Save(ctx, LoggedInAs("u-1", time.Now())))
	r, err := tab2.Load(ctx)
	require.NoError(t, err)
	require.True(t, r.LoggedIn)

	require.NoError(t, tab2.Clear(ctx))
	r, err = tab1.Load(ctx)
	require.NoError(t, err)
	assert.False(t, r.LoggedIn)
}

func TestClosedDB_ErrorsWrapStorage(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db, UserKeys)
	require.NoError(t, db.Close())
	ctx := context.Background()

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, common.ErrStorage)
	require.ErrorIs(t, s.Save(ctx, LoggedInAs("u", time.Now())), common.ErrStorage)
	require.ErrorIs(t, s.Touch(ctx, time.Now()), common.ErrStorage)
	require.ErrorIs(t, s.Clear(ctx), common.ErrStorage)
	require.ErrorIs(t, s.Wipe(ctx), common.ErrStorage)
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, RunMigrations(context.Background(), db))
}
