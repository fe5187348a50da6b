package sqlstore

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"app-access/internal/application"
	"app-access/internal/domain"
	"app-access/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Debug(context.Context, string, ...any) {}

var dbSeq atomic.Int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:app-access-test-%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := Open(DriverSqlite, dsn, nopLogger{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// rejectApp makes any insert for appID fail inside the database.
func rejectApp(t *testing.T, db *gorm.DB, appID string) {
	t.Helper()
	stmt := fmt.Sprintf(`CREATE TRIGGER reject_%[1]s BEFORE INSERT ON user_apps
		WHEN NEW.app_id = '%[1]s' BEGIN SELECT RAISE(ABORT, 'rejected'); END`, appID)
	require.NoError(t, db.Exec(stmt).Error)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "", nopLogger{})
	assert.Error(t, err)
}

func TestPermissionRepository_UpsertIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewPermissionRepository(db)
	ctx := context.Background()
	key := domain.PermissionKey{UserID: "u1", AppID: "zip-upload"}

	for i := 0; i < 2; i++ {
		rec, err := repo.Upsert(ctx, key, domain.Permission{CanView: true, CanUse: false})
		require.NoError(t, err)
		assert.Equal(t, key, rec.Key())
	}

	var count int64
	require.NoError(t, db.Model(&userAppRow{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err := repo.Find(ctx, ports.PermissionFilter{UserIDs: []string{"u1"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.Permission{CanView: true}, got[0].Permission())
}

func TestPermissionRepository_UpsertOverwrite(t *testing.T) {
	repo := NewPermissionRepository(openTestDB(t))
	ctx := context.Background()
	key := domain.PermissionKey{UserID: "u1", AppID: "zip-upload"}

	_, err := repo.Upsert(ctx, key, domain.Permission{CanView: true, CanUse: false})
	require.NoError(t, err)
	rec, err := repo.Upsert(ctx, key, domain.Permission{CanView: false, CanUse: true})
	require.NoError(t, err)

	assert.Equal(t, domain.Permission{CanView: false, CanUse: true}, rec.Permission())
}

func TestPermissionRepository_FindFilters(t *testing.T) {
	repo := NewPermissionRepository(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.UpsertAll(ctx, []domain.PermissionUpdate{
		{UserID: "u1", AppID: "a1", CanView: true},
		{UserID: "u1", AppID: "a2", CanUse: true},
		{UserID: "u2", AppID: "a1", CanView: true, CanUse: true},
		{UserID: "u3", AppID: "a1"},
	}))

	got, err := repo.Find(ctx, ports.PermissionFilter{UserIDs: []string{"u1", "u2"}})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	viewable, err := repo.Find(ctx, ports.PermissionFilter{UserIDs: []string{"u1"}, OnlyViewable: true})
	require.NoError(t, err)
	require.Len(t, viewable, 1)
	assert.Equal(t, "a1", viewable[0].AppID)

	byApp, err := repo.Find(ctx, ports.PermissionFilter{AppIDs: []string{"a2"}})
	require.NoError(t, err)
	require.Len(t, byApp, 1)
	assert.Equal(t, "u1", byApp[0].UserID)
}

func TestPermissionRepository_UpsertAllRollsBack(t *testing.T) {
	db := openTestDB(t)
	rejectApp(t, db, "boom")
	repo := NewPermissionRepository(db)

	err := repo.UpsertAll(context.Background(), []domain.PermissionUpdate{
		{UserID: "u1", AppID: "a1", CanView: true},
		{UserID: "u1", AppID: "boom", CanView: true},
	})
	require.Error(t, err)

	got, err := repo.Find(context.Background(), ports.PermissionFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBulkUpdate_BestEffortKeepsEarlierUpserts(t *testing.T) {
	db := openTestDB(t)
	rejectApp(t, db, "boom")
	repo := NewPermissionRepository(db)
	svc := application.NewBulkUpdateService(repo, false, nopLogger{})

	applied, err := svc.Apply(context.Background(), []domain.PermissionUpdate{
		{UserID: "u1", AppID: "a1", CanView: true},
		{UserID: "u1", AppID: "boom", CanView: true},
		{UserID: "u1", AppID: "a2", CanView: true},
	})
	assert.ErrorIs(t, err, domain.ErrStoreFailure)
	assert.Equal(t, 1, applied)

	got, err := repo.Find(context.Background(), ports.PermissionFilter{UserIDs: []string{"u1"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].AppID)
}

func TestAdminGrid_EndToEnd(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Create(&[]userRow{
		{ID: "u1", Email: "user01@example.com"},
		{ID: "u2", Email: "user02@example.com", Name: "Second"},
	}).Error)
	repo := NewPermissionRepository(db)
	_, err := repo.Upsert(context.Background(), domain.PermissionKey{UserID: "u1", AppID: "a1"}, domain.Permission{CanView: true, CanUse: true})
	require.NoError(t, err)

	apps := []domain.Application{{ID: "a1"}, {ID: "a2"}}
	resolver := application.NewResolverService(repo, domain.DefaultAllowList(), apps, nopLogger{})
	view, err := application.NewAdminService(NewUserRepository(db), resolver, nopLogger{}).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.User{
		{ID: "u1", Email: "user01@example.com"},
		{ID: "u2", Email: "user02@example.com", Name: "Second"},
	}, view.Users)
	assert.Equal(t, domain.PermissionGrid{
		"u1": {"a1": {CanView: true, CanUse: true}, "a2": {}},
		"u2": {"a1": {}, "a2": {}},
	}, view.Permissions)
}
