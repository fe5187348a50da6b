package domain

import "strings"

// AllowList maps a user email to the application ids that user may see on the
// marketplace. It is built once and never mutated, so a single value can be
// shared by every request handler without locking.
type AllowList struct {
	entries map[string][]string
}

func NewAllowList(entries map[string][]string) AllowList {
	copied := make(map[string][]string, len(entries))
	for email, appIDs := range entries {
		key := normalizeEmail(email)
		if key == "" {
			continue
		}
		ids := make([]string, 0, len(appIDs))
		for _, id := range appIDs {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		copied[key] = append(copied[key], ids...)
	}
	return AllowList{entries: copied}
}

// DefaultAllowList is the compiled-in table used when no allow-list file is configured.
func DefaultAllowList() AllowList {
	return NewAllowList(map[string][]string{
		"admin01@example.com": {"zip-upload", "contract-review", "video-generator"},
		"admin02@example.com": {"zip-upload", "contract-review", "video-generator"},
		"user01@example.com":  {"zip-upload", "contract-review"},
		"user02@example.com":  {"zip-upload"},
		"user03@example.com":  {},
	})
}

// AppsFor returns the application ids configured for email. Unknown and empty
// emails get an empty, non-nil slice.
func (l AllowList) AppsFor(email string) []string {
	ids := l.entries[normalizeEmail(email)]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func (l AllowList) Len() int { return len(l.entries) }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
