package ports

import (
	"context"

	"app-access/internal/domain"
)

// PermissionFilter narrows a Find. Empty fields do not filter.
type PermissionFilter struct {
	UserIDs      []string
	AppIDs       []string
	OnlyViewable bool
}

type PermissionRepository interface {
	Find(ctx context.Context, filter PermissionFilter) ([]domain.PermissionRecord, error)
	// Upsert overwrites both flags of the record at key, creating it if absent.
	Upsert(ctx context.Context, key domain.PermissionKey, perm domain.Permission) (domain.PermissionRecord, error)
}

// TransactionalPermissionRepository is implemented by stores that can apply a
// whole batch of upserts atomically.
type TransactionalPermissionRepository interface {
	PermissionRepository
	UpsertAll(ctx context.Context, updates []domain.PermissionUpdate) error
}

type UserRepository interface {
	List(ctx context.Context) ([]domain.User, error)
}
