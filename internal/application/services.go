package application

import (
	"context"
	"fmt"
	"slices"

	"app-access/internal/domain"
	"app-access/internal/ports"
)

// ResolverService answers which applications a user may see or use. The
// marketplace reads the static allow-list; the admin grid reads stored
// permission records. The two sources are kept separate.
type ResolverService struct {
	repo      ports.PermissionRepository
	allowList domain.AllowList
	catalog   []domain.Application
	logger    ports.Logger
}

func NewResolverService(repo ports.PermissionRepository, allowList domain.AllowList, catalog []domain.Application, logger ports.Logger) *ResolverService {
	return &ResolverService{repo: repo, allowList: allowList, catalog: catalog, logger: logger}
}

func (s *ResolverService) Catalog() []domain.Application {
	return slices.Clone(s.catalog)
}

func (s *ResolverService) AppsFor(email string) []string {
	return s.allowList.AppsFor(email)
}

// VisibleApps filters the catalog down to the apps allow-listed for email,
// keeping catalog order.
func (s *ResolverService) VisibleApps(email string) []domain.Application {
	allowed := s.allowList.AppsFor(email)
	visible := make([]domain.Application, 0, len(allowed))
	for _, app := range s.catalog {
		if slices.Contains(allowed, app.ID) {
			visible = append(visible, app)
		}
	}
	return visible
}

func (s *ResolverService) MarketplaceTiles(email string) []domain.AppTile {
	apps := s.VisibleApps(email)
	tiles := make([]domain.AppTile, 0, len(apps))
	for _, app := range apps {
		tiles = append(tiles, app.Tile())
	}
	return tiles
}

// Grid returns flags for every (user, catalog app) pair. Pairs without a
// stored record are present with both flags false. Stored records for apps
// outside the catalog or users outside userIDs are dropped.
func (s *ResolverService) Grid(ctx context.Context, userIDs []string) (domain.PermissionGrid, error) {
	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	grid := make(domain.PermissionGrid, len(ids))
	for _, userID := range ids {
		row := make(map[string]domain.Permission, len(s.catalog))
		for _, app := range s.catalog {
			row[app.ID] = domain.Permission{}
		}
		grid[userID] = row
	}
	if len(ids) == 0 {
		return grid, nil
	}

	records, err := s.repo.Find(ctx, ports.PermissionFilter{UserIDs: ids})
	if err != nil {
		s.logger.Error(ctx, "failed to load permission records", "users", len(ids), "error", err)
		return nil, fmt.Errorf("%w: find permissions: %v", domain.ErrStoreFailure, err)
	}
	for _, rec := range records {
		row, ok := grid[rec.UserID]
		if !ok {
			continue
		}
		if _, known := row[rec.AppID]; !known {
			s.logger.Debug(ctx, "ignoring permission for app outside catalog", "user_id", rec.UserID, "app_id", rec.AppID)
			continue
		}
		row[rec.AppID] = rec.Permission()
	}
	return grid, nil
}

// ViewableApps lists the stored records for userID that grant view access.
func (s *ResolverService) ViewableApps(ctx context.Context, userID string) ([]domain.PermissionRecord, error) {
	if userID == "" {
		return []domain.PermissionRecord{}, nil
	}
	records, err := s.repo.Find(ctx, ports.PermissionFilter{UserIDs: []string{userID}, OnlyViewable: true})
	if err != nil {
		return nil, fmt.Errorf("%w: find viewable apps: %v", domain.ErrStoreFailure, err)
	}
	out := make([]domain.PermissionRecord, 0, len(records))
	for _, rec := range records {
		if rec.CanView {
			out = append(out, rec)
		}
	}
	return out, nil
}

type AdminService struct {
	users    ports.UserRepository
	resolver *ResolverService
	logger   ports.Logger
}

func NewAdminService(users ports.UserRepository, resolver *ResolverService, logger ports.Logger) *AdminService {
	return &AdminService{users: users, resolver: resolver, logger: logger}
}

// Load gathers every user, the catalog, and the full permission grid.
func (s *AdminService) Load(ctx context.Context) (domain.AdminView, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		s.logger.Error(ctx, "failed to list users", "error", err)
		return domain.AdminView{}, fmt.Errorf("%w: list users: %v", domain.ErrStoreFailure, err)
	}
	userIDs := make([]string, 0, len(users))
	for _, u := range users {
		userIDs = append(userIDs, u.ID)
	}
	grid, err := s.resolver.Grid(ctx, userIDs)
	if err != nil {
		return domain.AdminView{}, err
	}
	return domain.AdminView{Users: users, Apps: s.resolver.Catalog(), Permissions: grid}, nil
}

// BulkUpdateService applies admin edits to the permission store.
//
// By default the batch is best-effort: upserts run one at a time in input
// order, the first failure stops the loop, and upserts that already ran stay
// committed. When atomic is set and the store supports transactions the whole
// batch is applied in one transaction instead.
type BulkUpdateService struct {
	repo   ports.PermissionRepository
	atomic bool
	logger ports.Logger
}

func NewBulkUpdateService(repo ports.PermissionRepository, atomic bool, logger ports.Logger) *BulkUpdateService {
	return &BulkUpdateService{repo: repo, atomic: atomic, logger: logger}
}

// Apply returns how many upserts were committed. A batch with an update
// missing its user or app id is rejected before touching the store.
func (s *BulkUpdateService) Apply(ctx context.Context, updates []domain.PermissionUpdate) (int, error) {
	for i, u := range updates {
		if u.UserID == "" || u.AppID == "" {
			return 0, fmt.Errorf("%w: update %d is missing userId or appId", domain.ErrInvalidInput, i)
		}
	}
	if len(updates) == 0 {
		return 0, nil
	}

	if tx, ok := s.repo.(ports.TransactionalPermissionRepository); ok && s.atomic {
		if err := tx.UpsertAll(ctx, updates); err != nil {
			s.logger.Error(ctx, "atomic permission update failed", "updates", len(updates), "error", err)
			return 0, fmt.Errorf("%w: upsert batch: %v", domain.ErrStoreFailure, err)
		}
		s.logger.Info(ctx, "permissions updated", "applied", len(updates), "atomic", true)
		return len(updates), nil
	}

	applied := 0
	for _, u := range updates {
		if _, err := s.repo.Upsert(ctx, u.Key(), u.Permission()); err != nil {
			s.logger.Error(ctx, "permission upsert failed",
				"user_id", u.UserID,
				"app_id", u.AppID,
				"applied", applied,
				"remaining", len(updates)-applied,
				"error", err,
			)
			return applied, fmt.Errorf("%w: upsert %s/%s: %v", domain.ErrStoreFailure, u.UserID, u.AppID, err)
		}
		applied++
	}
	s.logger.Info(ctx, "permissions updated", "applied", applied, "atomic", false)
	return applied, nil
}

