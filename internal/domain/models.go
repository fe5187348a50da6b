package domain

import "time"

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// DisplayName is the label the admin grid shows for a user row.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

type Application struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// AppTile is an application as rendered on the marketplace.
type AppTile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

func (a Application) Tile() AppTile {
	return AppTile{ID: a.ID, Name: a.Name, Description: a.Description, URL: a.URL}
}

type PermissionKey struct {
	UserID string `json:"userId"`
	AppID  string `json:"appId"`
}

type Permission struct {
	CanView bool `json:"canView"`
	CanUse  bool `json:"canUse"`
}

type PermissionRecord struct {
	UserID    string    `json:"userId"`
	AppID     string    `json:"appId"`
	CanView   bool      `json:"canView"`
	CanUse    bool      `json:"canUse"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r PermissionRecord) Key() PermissionKey {
	return PermissionKey{UserID: r.UserID, AppID: r.AppID}
}

func (r PermissionRecord) Permission() Permission {
	return Permission{CanView: r.CanView, CanUse: r.CanUse}
}

type PermissionUpdate struct {
	UserID  string `json:"userId"`
	AppID   string `json:"appId"`
	CanView bool   `json:"canView"`
	CanUse  bool   `json:"canUse"`
}

func (u PermissionUpdate) Key() PermissionKey {
	return PermissionKey{UserID: u.UserID, AppID: u.AppID}
}

func (u PermissionUpdate) Permission() Permission {
	return Permission{CanView: u.CanView, CanUse: u.CanUse}
}

// PermissionGrid maps userID -> appID -> flags. A grid built by the resolver
// holds an entry for every (user, app) pair it was asked about.
type PermissionGrid map[string]map[string]Permission

// Get returns the flags for a pair, defaulting to no access.
func (g PermissionGrid) Get(userID, appID string) Permission {
	return g[userID][appID]
}

// AdminView is everything the admin screen needs to render its checkbox table.
type AdminView struct {
	Users       []User         `json:"users"`
	Apps        []Application  `json:"apps"`
	Permissions PermissionGrid `json:"permissions"`
}
