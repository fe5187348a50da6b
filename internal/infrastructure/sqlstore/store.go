package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"app-access/internal/domain"
	"app-access/internal/ports"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

type userRow struct {
	ID        string `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	Name      string
	CreatedAt time.Time
}

func (userRow) TableName() string { return "users" }

type userAppRow struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"not null;uniqueIndex:idx_user_apps_user_app"`
	AppID     string `gorm:"not null;uniqueIndex:idx_user_apps_user_app"`
	CanView   bool   `gorm:"not null"`
	CanUse    bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userAppRow) TableName() string { return "user_apps" }

func (r userAppRow) record() domain.PermissionRecord {
	return domain.PermissionRecord{UserID: r.UserID, AppID: r.AppID, CanView: r.CanView, CanUse: r.CanUse, UpdatedAt: r.UpdatedAt}
}

// Open connects to driver/dsn and migrates the users and user_apps tables.
func Open(driver, dsn string, logger ports.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSqlite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(logger)})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if err := db.AutoMigrate(&userRow{}, &userAppRow{}); err != nil {
		return nil, fmt.Errorf("migrate %s database: %w", driver, err)
	}
	return db, nil
}

type PermissionRepository struct{ db *gorm.DB }

type UserRepository struct{ db *gorm.DB }

func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *PermissionRepository) Upsert(ctx context.Context, key domain.PermissionKey, perm domain.Permission) (domain.PermissionRecord, error) {
	return upsert(r.db.WithContext(ctx), key, perm)
}

// UpsertAll applies every update inside one transaction; any failure rolls
// back the whole batch.
func (r *PermissionRepository) UpsertAll(ctx context.Context, updates []domain.PermissionUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			if _, err := upsert(tx, u.Key(), u.Permission()); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsert(db *gorm.DB, key domain.PermissionKey, perm domain.Permission) (domain.PermissionRecord, error) {
	row := userAppRow{UserID: key.UserID, AppID: key.AppID, CanView: perm.CanView, CanUse: perm.CanUse}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "app_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"can_view", "can_use", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return domain.PermissionRecord{}, err
	}
	var stored userAppRow
	if err := db.Where("user_id = ? AND app_id = ?", key.UserID, key.AppID).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PermissionRecord{}, domain.ErrNotFound
		}
		return domain.PermissionRecord{}, err
	}
	return stored.record(), nil
}

func (r *PermissionRepository) Find(ctx context.Context, filter ports.PermissionFilter) ([]domain.PermissionRecord, error) {
	q := r.db.WithContext(ctx).Model(&userAppRow{})
	if len(filter.UserIDs) > 0 {
		q = q.Where("user_id IN ?", filter.UserIDs)
	}
	if len(filter.AppIDs) > 0 {
		q = q.Where("app_id IN ?", filter.AppIDs)
	}
	if filter.OnlyViewable {
		q = q.Where("can_view = ?", true)
	}
	var rows []userAppRow
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]domain.PermissionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := r.db.WithContext(ctx).Order("email").Find(&rows).Error; err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, domain.User{ID: row.ID, Email: row.Email, Name: row.Name})
	}
	return users, nil
}
