package tokens

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const unnamed = "Unnamed"

type Scope int

const (
	ScopePersonal Scope = iota
	ScopeProject
	ScopeGroup
)

// Scopes lists every token scope in report order.
var Scopes = []Scope{ScopePersonal, ScopeProject, ScopeGroup}

func (s Scope) String() string {
	switch s {
	case ScopePersonal:
		return "personal"
	case ScopeProject:
		return "project"
	case ScopeGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Title is the heading used for the scope in reports, e.g. "Project".
func (s Scope) Title() string {
	name := s.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

// AccessLevel is GitLab's numeric role for project and group tokens.
type AccessLevel int

const (
	AccessUnknown    AccessLevel = 0
	AccessGuest      AccessLevel = 10
	AccessReporter   AccessLevel = 20
	AccessDeveloper  AccessLevel = 30
	AccessMaintainer AccessLevel = 40
	AccessOwner      AccessLevel = 50
)

func (l AccessLevel) String() string {
	switch l {
	case AccessUnknown:
		return "Unknown"
	case AccessGuest:
		return "Guest"
	case AccessReporter:
		return "Reporter"
	case AccessDeveloper:
		return "Developer"
	case AccessMaintainer:
		return "Maintainer"
	case AccessOwner:
		return "Owner"
	default:
		return strconv.Itoa(int(l))
	}
}

// Owner identifies what a token belongs to. Only UserOwner, ProjectOwner
// and GroupOwner implement it.
type Owner interface {
	Scope() Scope
	isOwner()
}

// UserOwner owns a personal access token. A zero UserID means the API did
// not report an owner.
type UserOwner struct {
	UserID int64
}

// ProjectOwner owns a project access token. Name and Path are filled in
// after classification.
type ProjectOwner struct {
	ProjectID   int64
	AccessLevel AccessLevel
	Name        string
	Path        string
}

// GroupOwner owns a group access token. Name and Path are filled in after
// classification.
type GroupOwner struct {
	GroupID     int64
	AccessLevel AccessLevel
	Name        string
	Path        string
}

func (UserOwner) Scope() Scope    { return ScopePersonal }
func (ProjectOwner) Scope() Scope { return ScopeProject }
func (GroupOwner) Scope() Scope   { return ScopeGroup }

func (UserOwner) isOwner()    {}
func (ProjectOwner) isOwner() {}
func (GroupOwner) isOwner()   {}

type Status string

const (
	StatusExpired      Status = "Expired"
	StatusExpiringSoon Status = "Expiring Soon"
	StatusHealthy      Status = "Healthy"
	StatusNoExpiration Status = "No Expiration"
	StatusError        Status = "Error"
)

type Category string

const (
	CategoryExpired      Category = "expired"
	CategoryExpiringSoon Category = "expiring_soon"
	CategoryHealthy      Category = "healthy"
	CategoryNoExpiration Category = "no_expiration"
)

// Categories lists the four buckets in report order.
var Categories = []Category{CategoryExpired, CategoryExpiringSoon, CategoryHealthy, CategoryNoExpiration}

type daysKind uint8

const (
	daysUnset daysKind = iota
	daysCount
	daysNever
	daysUnknown
)

// Days is the number of whole days until a token expires, or one of the
// sentinels Never (permanent token) and Unknown (unparseable expiry).
type Days struct {
	kind  daysKind
	count int
}

var (
	DaysNever   = Days{kind: daysNever}
	DaysUnknown = Days{kind: daysUnknown}
)

func DaysOf(n int) Days {
	return Days{kind: daysCount, count: n}
}

// Count returns the day count and whether the value is a number rather
// than a sentinel.
func (d Days) Count() (int, bool) {
	return d.count, d.kind == daysCount
}

func (d Days) IsSet() bool { return d.kind != daysUnset }

func (d Days) String() string {
	switch d.kind {
	case daysCount:
		return strconv.Itoa(d.count)
	case daysNever:
		return "Never"
	case daysUnknown:
		return "Unknown"
	default:
		return ""
	}
}

func (d Days) MarshalJSON() ([]byte, error) {
	if d.kind == daysCount {
		return json.Marshal(d.count)
	}
	if d.kind == daysUnset {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// Token is one access token as reported by GitLab, plus the fields
// computed during classification.
type Token struct {
	ID         int64
	Name       string
	Scopes     []string
	ExpiresAt  string // raw API value; empty means the token never expires
	Active     bool
	Revoked    bool
	CreatedAt  *time.Time
	LastUsedAt *time.Time
	Owner      Owner

	Status          Status
	DaysUntilExpiry Days
}

func (t Token) Scope() Scope {
	if t.Owner == nil {
		return ScopePersonal
	}
	return t.Owner.Scope()
}

func (t Token) DisplayName() string {
	if t.Name == "" {
		return unnamed
	}
	return t.Name
}

// ScopeList renders the permission scopes sorted and comma separated.
func (t Token) ScopeList() string {
	sorted := make([]string, len(t.Scopes))
	copy(sorted, t.Scopes)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

func (t Token) DisplayExpiry() string {
	if t.ExpiresAt == "" {
		return "Never"
	}
	return t.ExpiresAt
}

func (t Token) AccessLevel() AccessLevel {
	switch o := t.Owner.(type) {
	case ProjectOwner:
		return o.AccessLevel
	case GroupOwner:
		return o.AccessLevel
	default:
		return AccessUnknown
	}
}

func (t Token) String() string {
	return fmt.Sprintf("%s token %d (%s)", t.Scope(), t.ID, t.DisplayName())
}

// clone returns a copy that shares no slices with t.
func (t Token) clone() Token {
	if t.Scopes != nil {
		scopes := make([]string, len(t.Scopes))
		copy(scopes, t.Scopes)
		t.Scopes = scopes
	}
	return t
}
