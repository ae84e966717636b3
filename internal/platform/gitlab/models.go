package gitlab

import (
	"time"

	"tokenaudit/internal/engine/tokens"
)

type Project struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
}

// DisplayPath falls back to the name when GitLab omits the full path.
func (p Project) DisplayPath() string {
	if p.PathWithNamespace == "" {
		return p.Name
	}
	return p.PathWithNamespace
}

type Group struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullPath string `json:"full_path"`
}

func (g Group) DisplayPath() string {
	if g.FullPath == "" {
		return g.Name
	}
	return g.FullPath
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type personalAccessToken struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Revoked    bool     `json:"revoked"`
	Active     bool     `json:"active"`
	Scopes     []string `json:"scopes"`
	UserID     *int64   `json:"user_id"`
	CreatedAt  string   `json:"created_at"`
	LastUsedAt string   `json:"last_used_at"`
	ExpiresAt  *string  `json:"expires_at"`
}

// resourceAccessToken is the shape of project and group access tokens.
type resourceAccessToken struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Revoked     bool     `json:"revoked"`
	Active      bool     `json:"active"`
	Scopes      []string `json:"scopes"`
	AccessLevel int      `json:"access_level"`
	CreatedAt   string   `json:"created_at"`
	LastUsedAt  string   `json:"last_used_at"`
	ExpiresAt   *string  `json:"expires_at"`
}

func (t personalAccessToken) toToken() tokens.Token {
	owner := tokens.UserOwner{}
	if t.UserID != nil {
		owner.UserID = *t.UserID
	}
	return tokens.Token{
		ID:         t.ID,
		Name:       t.Name,
		Scopes:     t.Scopes,
		ExpiresAt:  deref(t.ExpiresAt),
		Active:     t.Active,
		Revoked:    t.Revoked,
		CreatedAt:  parseTimestamp(t.CreatedAt),
		LastUsedAt: parseTimestamp(t.LastUsedAt),
		Owner:      owner,
	}
}

func (t resourceAccessToken) toToken(owner tokens.Owner) tokens.Token {
	return tokens.Token{
		ID:         t.ID,
		Name:       t.Name,
		Scopes:     t.Scopes,
		ExpiresAt:  deref(t.ExpiresAt),
		Active:     t.Active,
		Revoked:    t.Revoked,
		CreatedAt:  parseTimestamp(t.CreatedAt),
		LastUsedAt: parseTimestamp(t.LastUsedAt),
		Owner:      owner,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Informational timestamps; a bad value is dropped rather than failing the batch.
func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}
