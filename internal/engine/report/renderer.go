package report

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"tokenaudit/internal/engine/tokens"
)

//go:embed templates/report.html
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html"))

const unknown = "Unknown"

type cell struct {
	Text  string
	Class string
}

type table struct {
	Title   string
	Headers []string
	Rows    [][]cell
}

type view struct {
	Summary        tokens.Summary
	Expired        []table
	ExpiringSoon   []table
	Healthy        []table
	NoExpiration   []table
	PersonalTokens string
	AdminSettings  string
}

// Renderer turns an analysis into the HTML report body.
type Renderer struct {
	gitlabURL string
	directory *Directory
}

func NewRenderer(gitlabURL string, directory *Directory) *Renderer {
	return &Renderer{gitlabURL: gitlabURL, directory: directory}
}

// Subject summarises the report for the mail subject line.
func Subject(s tokens.Summary) string {
	if s.ProblematicCount > 0 {
		return fmt.Sprintf("GitLab Token Report - %d/%d tokens need attention", s.ProblematicCount, s.TotalTokens)
	}
	return fmt.Sprintf("GitLab Token Report - All %d tokens are healthy", s.TotalTokens)
}

func (r *Renderer) Render(ctx context.Context, analysis *tokens.Analysis) (string, error) {
	v := view{
		Summary:        analysis.Summary(),
		Expired:        r.tables(ctx, analysis.Expired, "expired"),
		ExpiringSoon:   r.tables(ctx, analysis.ExpiringSoon, "expiring"),
		Healthy:        r.tables(ctx, analysis.Healthy, "healthy"),
		NoExpiration:   r.tables(ctx, analysis.NoExpiration, "no-expiration"),
		PersonalTokens: r.gitlabURL + "/profile/personal_access_tokens",
		AdminSettings:  r.gitlabURL + "/admin/application_settings/general#js-access-token-settings",
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// tables splits one category into a table per token scope.
func (r *Renderer) tables(ctx context.Context, bucket []tokens.Token, class string) []table {
	grouped := tokens.GroupByScope(bucket)

	var out []table
	for _, scope := range tokens.Scopes {
		list := grouped[scope]
		if len(list) == 0 {
			continue
		}

		t := table{Title: scope.Title() + " Access Tokens", Headers: headers(scope)}
		for _, tok := range list {
			t.Rows = append(t.Rows, r.row(ctx, tok, class))
		}
		out = append(out, t)
	}
	return out
}

func headers(scope tokens.Scope) []string {
	switch scope {
	case tokens.ScopeProject:
		return []string{"Token Name", "Project", "Project Path", "Expires At", "Status", "Days Until Expiry", "Access Level"}
	case tokens.ScopeGroup:
		return []string{"Token Name", "Group", "Group Path", "Expires At", "Status", "Days Until Expiry", "Access Level", "Scopes"}
	default:
		return []string{"Token Name", "User", "Email", "Expires At", "Status", "Days Until Expiry", "Scopes"}
	}
}

func (r *Renderer) row(ctx context.Context, tok tokens.Token, class string) []cell {
	status := string(tok.Status)
	if status == "" {
		status = unknown
	}
	lead := []cell{{Text: tok.DisplayName()}}
	tail := []cell{
		{Text: tok.DisplayExpiry()},
		{Text: status, Class: class},
		{Text: tok.DaysUntilExpiry.String(), Class: class},
	}

	switch owner := tok.Owner.(type) {
	case tokens.ProjectOwner:
		row := append(lead, cell{Text: orUnknown(owner.Name)}, cell{Text: orUnknown(owner.Path)})
		row = append(row, tail...)
		return append(row, cell{Text: owner.AccessLevel.String()})

	case tokens.GroupOwner:
		name, path := owner.Name, owner.Path
		if name == "" {
			if g := r.directory.Group(ctx, owner.GroupID); g != nil {
				name, path = g.Name, g.DisplayPath()
			}
		}
		row := append(lead, cell{Text: orUnknown(name)}, cell{Text: orUnknown(path)})
		row = append(row, tail...)
		return append(row, cell{Text: owner.AccessLevel.String()}, cell{Text: tok.ScopeList()})

	default:
		username, email := unknown, unknown
		if u, ok := owner.(tokens.UserOwner); ok {
			if user := r.directory.User(ctx, u.UserID); user != nil {
				username, email = orUnknown(user.Username), orUnknown(user.Email)
			}
		}
		row := append(lead, cell{Text: username}, cell{Text: email})
		row = append(row, tail...)
		return append(row, cell{Text: tok.ScopeList()})
	}
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
