package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog/log"
	"tokenaudit/internal/engine/tokens"
	"tokenaudit/internal/platform/config"
)

const defaultPerPage = 100

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gitlab: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client talks to the GitLab REST API v4 with an administrator token.
type Client struct {
	baseURL string
	token   string
	perPage int
	http    *http.Client
}

func NewClient(cfg config.GitLabConfig) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	return NewClientWithHTTP(cfg, httpClient)
}

func NewClientWithHTTP(cfg config.GitLabConfig, httpClient *http.Client) *Client {
	perPage := cfg.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = defaultPerPage
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/") + "/api/v4",
		token:   cfg.AdminToken,
		perPage: perPage,
		http:    httpClient,
	}
}

// ListPersonalTokens returns every personal access token visible to the
// administrator.
func (c *Client) ListPersonalTokens(ctx context.Context) ([]tokens.Token, error) {
	raw, err := paginate[personalAccessToken](ctx, c, "/personal_access_tokens", nil)
	if err != nil {
		return nil, err
	}

	out := make([]tokens.Token, 0, len(raw))
	for _, t := range raw {
		out = append(out, t.toToken())
	}
	return out, nil
}

func (c *Client) ListProjectTokens(ctx context.Context, projectID int64) ([]tokens.Token, error) {
	raw, err := paginate[resourceAccessToken](ctx, c, fmt.Sprintf("/projects/%d/access_tokens", projectID), nil)
	if err != nil {
		return nil, err
	}

	out := make([]tokens.Token, 0, len(raw))
	for _, t := range raw {
		out = append(out, t.toToken(tokens.ProjectOwner{
			ProjectID:   projectID,
			AccessLevel: tokens.AccessLevel(t.AccessLevel),
		}))
	}
	return out, nil
}

func (c *Client) ListGroupTokens(ctx context.Context, groupID int64) ([]tokens.Token, error) {
	raw, err := paginate[resourceAccessToken](ctx, c, fmt.Sprintf("/groups/%d/access_tokens", groupID), nil)
	if err != nil {
		return nil, err
	}

	out := make([]tokens.Token, 0, len(raw))
	for _, t := range raw {
		out = append(out, t.toToken(tokens.GroupOwner{
			GroupID:     groupID,
			AccessLevel: tokens.AccessLevel(t.AccessLevel),
		}))
	}
	return out, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	return paginate[Project](ctx, c, "/projects", url.Values{"simple": {"true"}})
}

func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	return paginate[Group](ctx, c, "/groups", url.Values{"simple": {"true"}, "all_available": {"true"}})
}

func (c *Client) User(ctx context.Context, userID int64) (*User, error) {
	var user User
	if _, err := c.get(ctx, fmt.Sprintf("/users/%d", userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Group(ctx context.Context, groupID int64) (*Group, error) {
	var group Group
	if _, err := c.get(ctx, fmt.Sprintf("/groups/%d", groupID), nil, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// paginate walks pages until GitLab reports no next page or returns an
// empty one. If a page fails, the items already collected are returned
// together with the error.
func paginate[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	params := url.Values{}
	for k, v := range query {
		params[k] = v
	}
	params.Set("per_page", strconv.Itoa(c.perPage))

	var all []T
	page := 1
	for {
		params.Set("page", strconv.Itoa(page))

		var items []T
		header, err := c.get(ctx, path, params, &items)
		if err != nil {
			return all, err
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)

		next, ok := header["X-Next-Page"]
		if !ok {
			page++
			continue
		}
		if len(next) == 0 || next[0] == "" {
			break
		}
		n, err := strconv.Atoi(next[0])
		if err != nil || n <= page {
			break
		}
		page = n
	}
	return all, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) (http.Header, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gitlab: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodGet,
			Path:       path,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("gitlab: decode %s: %w", path, err)
	}

	log.Debug().Str("path", path).Str("page", query.Get("page")).Msg("gitlab request complete")
	return resp.Header, nil
}
