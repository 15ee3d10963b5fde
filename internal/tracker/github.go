package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	githubAPIVersion = "2022-11-28"
	maxResponseBytes = 4 << 20
)

// RequestObserver receives the latency of each tracker call.
type RequestObserver interface {
	ObserveRequest(operation string, duration time.Duration)
}

// GitHubClient implements Tracker against the GitHub REST API.
type GitHubClient struct {
	baseURL    string
	token      string
	userAgent  string
	perPage    int
	maxPages   int
	httpClient *http.Client
	limiter    *rate.Limiter
	observer   RequestObserver
	logger     zerolog.Logger
}

// GitHubClientBuilder builds a GitHubClient with a fluent interface
type GitHubClientBuilder struct {
	baseURL           string
	token             string
	userAgent         string
	perPage           int
	maxPages          int
	requestsPerMinute int
	burst             int
	transport         TransportConfig
	httpClient        *http.Client
	observer          RequestObserver
	logger            zerolog.Logger
}

// NewGitHubClientBuilder creates a builder targeting api.github.com
func NewGitHubClientBuilder(logger zerolog.Logger) *GitHubClientBuilder {
	return &GitHubClientBuilder{
		baseURL:   "https://api.github.com",
		userAgent: "OverWatch-Bot",
		perPage:   100,
		maxPages:  3,
		burst:     1,
		transport: DefaultTransportConfig(),
		logger:    logger,
	}
}

func (b *GitHubClientBuilder) WithBaseURL(baseURL string) *GitHubClientBuilder {
	b.baseURL = strings.TrimRight(baseURL, "/")
	return b
}

func (b *GitHubClientBuilder) WithToken(token string) *GitHubClientBuilder {
	b.token = token
	return b
}

func (b *GitHubClientBuilder) WithUserAgent(userAgent string) *GitHubClientBuilder {
	if userAgent != "" {
		b.userAgent = userAgent
	}
	return b
}

// WithPagination bounds duplicate checks to maxPages pages of perPage issues
func (b *GitHubClientBuilder) WithPagination(perPage, maxPages int) *GitHubClientBuilder {
	b.perPage = perPage
	b.maxPages = maxPages
	return b
}

// WithRateLimit paces outgoing requests. Zero requests per minute disables pacing.
func (b *GitHubClientBuilder) WithRateLimit(requestsPerMinute, burst int) *GitHubClientBuilder {
	b.requestsPerMinute = requestsPerMinute
	b.burst = burst
	return b
}

func (b *GitHubClientBuilder) WithTransport(cfg TransportConfig) *GitHubClientBuilder {
	b.transport = cfg
	return b
}

// WithHTTPClient replaces the built-in transport, mainly for tests
func (b *GitHubClientBuilder) WithHTTPClient(client *http.Client) *GitHubClientBuilder {
	b.httpClient = client
	return b
}

func (b *GitHubClientBuilder) WithObserver(observer RequestObserver) *GitHubClientBuilder {
	b.observer = observer
	return b
}

// Build validates the settings and creates the client
func (b *GitHubClientBuilder) Build() (*GitHubClient, error) {
	if b.token == "" {
		return nil, common.WrapError(common.ErrMissingCredentials, "tracker token is empty")
	}
	if _, err := url.ParseRequestURI(b.baseURL); err != nil {
		return nil, common.NewValidationError("api_url", b.baseURL, "must be an absolute URL")
	}
	if b.perPage <= 0 || b.maxPages <= 0 {
		return nil, common.NewValidationError("issues_per_page", b.perPage, "pagination values must be positive")
	}

	logger := b.logger.With().Str("module", "GitHubClient").Logger()

	limit := rate.Inf
	if b.requestsPerMinute > 0 {
		limit = rate.Limit(float64(b.requestsPerMinute) / 60.0)
	}
	burst := b.burst
	if burst < 1 {
		burst = 1
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = newHTTPClient(b.transport, logger)
	}

	return &GitHubClient{
		baseURL:    b.baseURL,
		token:      b.token,
		userAgent:  b.userAgent,
		perPage:    b.perPage,
		maxPages:   b.maxPages,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		observer:   b.observer,
		logger:     logger,
	}, nil
}

type githubUser struct {
	Login string `json:"login"`
}

type githubRepository struct {
	FullName  string `json:"full_name"`
	HasIssues bool   `json:"has_issues"`
	Archived  bool   `json:"archived"`
}

type githubIssue struct {
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	State       string          `json:"state"`
	HTMLURL     string          `json:"html_url"`
	PullRequest json.RawMessage `json:"pull_request,omitempty"`
}

type githubNewIssue struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

type githubErrorBody struct {
	Message string `json:"message"`
}

func (c *GitHubClient) Authenticate(ctx context.Context) (Identity, error) {
	var user githubUser
	if err := c.do(ctx, "authenticate", http.MethodGet, "/user", nil, nil, &user); err != nil {
		return Identity{}, err
	}
	return Identity{Login: user.Login}, nil
}

func (c *GitHubClient) GetRepository(ctx context.Context, fullName string) (Repository, error) {
	path, err := repoPath(fullName)
	if err != nil {
		return Repository{}, err
	}
	var repo githubRepository
	if err := c.do(ctx, "get_repository", http.MethodGet, path, nil, nil, &repo); err != nil {
		return Repository{}, err
	}
	return Repository{FullName: repo.FullName, HasIssues: repo.HasIssues, Archived: repo.Archived}, nil
}

// ListIssues pages through issues of any state, skipping pull requests.
// At most maxPages pages are fetched.
func (c *GitHubClient) ListIssues(ctx context.Context, fullName string) ([]Issue, error) {
	path, err := repoPath(fullName)
	if err != nil {
		return nil, err
	}

	var issues []Issue
	for page := 1; page <= c.maxPages; page++ {
		query := url.Values{}
		query.Set("state", "all")
		query.Set("per_page", strconv.Itoa(c.perPage))
		query.Set("page", strconv.Itoa(page))

		var batch []githubIssue
		if err := c.do(ctx, "list_issues", http.MethodGet, path+"/issues", query, nil, &batch); err != nil {
			return nil, err
		}
		for _, item := range batch {
			if len(item.PullRequest) > 0 {
				continue
			}
			issues = append(issues, Issue{Number: item.Number, Title: item.Title, State: item.State})
		}
		if len(batch) < c.perPage {
			break
		}
	}
	return issues, nil
}

func (c *GitHubClient) CreateIssue(ctx context.Context, fullName string, issue NewIssue) (CreatedIssue, error) {
	path, err := repoPath(fullName)
	if err != nil {
		return CreatedIssue{}, err
	}
	payload := githubNewIssue{Title: issue.Title, Body: issue.Body, Labels: issue.Labels}

	var created githubIssue
	if err := c.do(ctx, "create_issue", http.MethodPost, path+"/issues", nil, payload, &created); err != nil {
		return CreatedIssue{}, err
	}
	return CreatedIssue{Number: created.Number, URL: created.HTMLURL}, nil
}

func (c *GitHubClient) do(ctx context.Context, operation, method, path string, query url.Values, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return common.WrapError(err, "rate limiter wait aborted")
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return common.WrapError(err, "failed to encode request body")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return common.WrapError(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.observer != nil {
		c.observer.ObserveRequest(operation, time.Since(start))
	}
	if err != nil {
		return common.WrapErrorf(err, "%s request failed", operation)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return common.WrapError(err, "failed to read response body")
	}

	c.logger.Debug().
		Str("operation", operation).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("rate_remaining", resp.Header.Get("X-RateLimit-Remaining")).
		Msg("Tracker request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody githubErrorBody
		_ = json.Unmarshal(data, &errBody)
		return classifyResponse(resp.StatusCode, resp.Header, errBody.Message)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return common.WrapErrorf(err, "failed to decode %s response", operation)
	}
	return nil
}

func repoPath(fullName string) (string, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", common.NewValidationError("repository", fullName, "must be in owner/repo form")
	}
	return fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo)), nil
}
