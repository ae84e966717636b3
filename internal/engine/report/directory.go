package report

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"tokenaudit/internal/platform/gitlab"
)

// Lookup resolves owner display metadata. gitlab.Client implements it.
type Lookup interface {
	User(ctx context.Context, userID int64) (*gitlab.User, error)
	Group(ctx context.Context, groupID int64) (*gitlab.Group, error)
}

type cachedEntry struct {
	user     *gitlab.User
	group    *gitlab.Group
	cachedAt time.Time
}

// Directory memoises owner lookups so a user owning many tokens is fetched
// once per TTL. Failed lookups are not cached, so the next render retries them.
type Directory struct {
	lookup Lookup
	users  sync.Map // map[int64]*cachedEntry
	groups sync.Map // map[int64]*cachedEntry
	ttl    time.Duration
}

func NewDirectory(lookup Lookup, ttl time.Duration) *Directory {
	return &Directory{lookup: lookup, ttl: ttl}
}

func (d *Directory) fresh(val any) (*cachedEntry, bool) {
	entry := val.(*cachedEntry)
	if time.Since(entry.cachedAt) > d.ttl {
		return nil, false
	}
	return entry, true
}

// User returns nil when the user cannot be resolved.
func (d *Directory) User(ctx context.Context, userID int64) *gitlab.User {
	if userID == 0 {
		return nil
	}
	if val, ok := d.users.Load(userID); ok {
		if entry, ok := d.fresh(val); ok {
			return entry.user
		}
		d.users.Delete(userID)
	}

	user, err := d.lookup.User(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to fetch user info")
		return nil
	}
	d.users.Store(userID, &cachedEntry{user: user, cachedAt: time.Now()})
	return user
}

// Group returns nil when the group cannot be resolved.
func (d *Directory) Group(ctx context.Context, groupID int64) *gitlab.Group {
	if groupID == 0 {
		return nil
	}
	if val, ok := d.groups.Load(groupID); ok {
		if entry, ok := d.fresh(val); ok {
			return entry.group
		}
		d.groups.Delete(groupID)
	}

	group, err := d.lookup.Group(ctx, groupID)
	if err != nil {
		log.Warn().Err(err).Int64("group_id", groupID).Msg("failed to fetch group info")
		return nil
	}
	d.groups.Store(groupID, &cachedEntry{group: group, cachedAt: time.Now()})
	return group
}
