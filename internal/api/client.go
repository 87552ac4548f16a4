package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/fieldline/bulkpush/internal/config"
	"github.com/fieldline/bulkpush/internal/constants"
	inthttp "github.com/fieldline/bulkpush/internal/http"
	"github.com/fieldline/bulkpush/internal/models"
)

// retryLogger implements the retryablehttp.LeveledLogger interface.
// Only errors and warnings are surfaced; transport-level retries are
// otherwise invisible to the scheduler.
type retryLogger struct{}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	log.Error().Msgf("transport retry: %s %v", msg, keysAndValues)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	log.Warn().Msgf("transport retry: %s %v", msg, keysAndValues)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{})  {}
func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {}

// Result is the classified outcome of one upload attempt, together with
// the quota view the response carried in its rate-limit headers.
type Result struct {
	Outcome models.Outcome

	// Quota is taken from the X-RateLimit-* response headers when
	// present; nil otherwise. The scheduler applies it to the credential
	// opportunistically so dedicated probes stay rare.
	Quota *models.QuotaInfo

	// Err holds the underlying failure detail for transient, fatal and
	// auth outcomes. Nil for successful or skip outcomes.
	Err error
}

// Client performs contents API operations. A single Client is shared by
// all credentials; the token is supplied per call.
type Client struct {
	httpClient *nethttp.Client
	baseURL    string
	repository string
	branch     string
	message    string
	maxPayload int64
}

// NewClient creates a contents API client from the configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	httpClient, err := inthttp.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	// Wrap with transport-level retry for connection resets and 5xx.
	// The scheduler runs its own bounded retry on top of this, so keep
	// the transport budget small.
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = constants.TransportRetryMax
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = &retryLogger{}

	return &Client{
		httpClient: retryClient.StandardClient(),
		baseURL:    strings.TrimSuffix(cfg.APIBaseURL, "/"),
		repository: cfg.Repository,
		branch:     cfg.Branch,
		message:    cfg.CommitMessage,
		maxPayload: cfg.MaxPayloadBytes,
	}, nil
}

// doRequest performs an HTTP request authenticated with the given token.
func (c *Client) doRequest(ctx context.Context, method, path, token string, body interface{}) (*nethttp.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.HTTPRequestTimeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// contentsPath builds the API path for a repository-relative file path.
// Segments are escaped individually so the path separators survive.
func (c *Client) contentsPath(path string) string {
	segments := strings.Split(path, "/")
	for i := range segments {
		segments[i] = url.PathEscape(segments[i])
	}
	return fmt.Sprintf("/repos/%s/contents/%s", c.repository, strings.Join(segments, "/"))
}

// quotaFromHeaders extracts the rate-limit view carried by a response.
// Returns nil when the headers are absent.
func quotaFromHeaders(h nethttp.Header) *models.QuotaInfo {
	remainingStr := h.Get("X-RateLimit-Remaining")
	if remainingStr == "" {
		return nil
	}
	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return nil
	}

	info := &models.QuotaInfo{Remaining: remaining}
	if limit, err := strconv.Atoi(h.Get("X-RateLimit-Limit")); err == nil {
		info.Limit = limit
	}
	if reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		info.ResetAt = time.Unix(reset, 0)
	}
	return info
}

// ReadQuota queries the credential's current quota and reset time.
func (c *Client) ReadQuota(ctx context.Context, token string) (models.QuotaInfo, error) {
	resp, err := c.doRequest(ctx, "GET", "/rate_limit", token, nil)
	if err != nil {
		return models.QuotaInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == nethttp.StatusUnauthorized || resp.StatusCode == nethttp.StatusForbidden {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == nethttp.StatusForbidden && isQuotaMessage(string(body)) {
			// Even an exhausted credential answers /rate_limit; a quota
			// message here means something else is wrong.
			return models.QuotaInfo{}, fmt.Errorf("%w: %s", ErrQuotaExhausted, string(body))
		}
		return models.QuotaInfo{}, fmt.Errorf("%w: status %d: %s", ErrAuthFailure, resp.StatusCode, string(body))
	}

	if resp.StatusCode != nethttp.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return models.QuotaInfo{}, fmt.Errorf("quota query failed: status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Resources struct {
			Core struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.QuotaInfo{}, fmt.Errorf("failed to decode quota response: %w", err)
	}

	return models.QuotaInfo{
		Remaining: result.Resources.Core.Remaining,
		Limit:     result.Resources.Core.Limit,
		ResetAt:   time.Unix(result.Resources.Core.Reset, 0),
	}, nil
}

// Repository is the subset of repository metadata used by pre-flight
// verification.
type Repository struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Permissions   struct {
		Push bool `json:"push"`
	} `json:"permissions"`
}

// ReadRepository fetches the target repository's metadata, including
// whether the credential can push to it.
func (c *Client) ReadRepository(ctx context.Context, token string) (Repository, error) {
	resp, err := c.doRequest(ctx, "GET", "/repos/"+c.repository, token, nil)
	if err != nil {
		return Repository{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case nethttp.StatusOK:
		var repo Repository
		if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
			return Repository{}, fmt.Errorf("failed to decode repository: %w", err)
		}
		return repo, nil
	case nethttp.StatusUnauthorized, nethttp.StatusForbidden:
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == nethttp.StatusForbidden && isQuotaMessage(string(body)) {
			return Repository{}, fmt.Errorf("%w: %s", ErrQuotaExhausted, string(body))
		}
		return Repository{}, fmt.Errorf("%w: status %d: %s", ErrAuthFailure, resp.StatusCode, string(body))
	case nethttp.StatusNotFound:
		// Private repositories 404 for tokens without access.
		return Repository{}, fmt.Errorf("%w: repository not visible (404)", ErrAuthFailure)
	default:
		body, _ := io.ReadAll(resp.Body)
		return Repository{}, fmt.Errorf("repository lookup failed: status %d: %s", resp.StatusCode, string(body))
	}
}

// ReadVersionToken looks up the current version token (sha) for a
// repository path. Absence is not an error: a missing resource returns
// an empty token, which means the subsequent write is a create.
func (c *Client) ReadVersionToken(ctx context.Context, token, path string) (string, *models.QuotaInfo, error) {
	apiPath := c.contentsPath(path) + "?ref=" + url.QueryEscape(c.branch)
	resp, err := c.doRequest(ctx, "GET", apiPath, token, nil)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	quota := quotaFromHeaders(resp.Header)

	switch {
	case resp.StatusCode == nethttp.StatusOK:
		var result struct {
			SHA string `json:"sha"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return "", quota, fmt.Errorf("failed to decode version lookup: %w", err)
		}
		return result.SHA, quota, nil

	case resp.StatusCode == nethttp.StatusNotFound:
		// Expected for new files: no version, write will create.
		return "", quota, nil

	case resp.StatusCode == nethttp.StatusForbidden:
		body, _ := io.ReadAll(resp.Body)
		if isQuotaMessage(string(body)) {
			return "", quota, fmt.Errorf("%w: %s", ErrQuotaExhausted, string(body))
		}
		return "", quota, fmt.Errorf("%w: status 403: %s", ErrAuthFailure, string(body))

	case resp.StatusCode == nethttp.StatusUnauthorized:
		body, _ := io.ReadAll(resp.Body)
		return "", quota, fmt.Errorf("%w: status 401: %s", ErrAuthFailure, string(body))

	default:
		body, _ := io.ReadAll(resp.Body)
		return "", quota, fmt.Errorf("version lookup failed: status %d: %s", resp.StatusCode, string(body))
	}
}

// writeRequest is the JSON body of a contents write.
type writeRequest struct {
	Message string `json:"message"`
	Content string `json:"content"` // base64
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"` // compare-and-swap precondition
}

// Upload performs one idempotent create-or-update of a job's file using
// the given credential token.
//
// Sequence:
//  1. Local size check against the payload ceiling (no network on TooLarge).
//  2. Version token lookup; 404 means create.
//  3. Write with the token attached as a compare-and-swap precondition.
//  4. Classification of the response into a models.Outcome.
func (c *Client) Upload(ctx context.Context, job models.UploadJob, token string) Result {
	if job.Size > c.maxPayload {
		return Result{Outcome: models.OutcomeTooLarge}
	}

	sha, quota, err := c.ReadVersionToken(ctx, token, job.Path)
	if err != nil {
		return Result{Outcome: classifyError(err), Quota: quota, Err: err}
	}

	content, err := os.ReadFile(job.LocalPath)
	if err != nil {
		return Result{Outcome: models.OutcomeFatal, Quota: quota, Err: fmt.Errorf("failed to read %s: %w", job.LocalPath, err)}
	}
	// Re-check after read: the file may have grown since enumeration.
	if int64(len(content)) > c.maxPayload {
		return Result{Outcome: models.OutcomeTooLarge, Quota: quota}
	}

	req := writeRequest{
		Message: c.message + ": " + job.Path,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  c.branch,
		SHA:     sha,
	}

	resp, err := c.doRequest(ctx, "PUT", c.contentsPath(job.Path), token, req)
	if err != nil {
		return Result{Outcome: models.OutcomeTransient, Quota: quota, Err: err}
	}
	defer resp.Body.Close()

	if q := quotaFromHeaders(resp.Header); q != nil {
		quota = q
	}

	return c.classifyWrite(resp, sha, quota)
}

// classifyWrite maps a write response onto the outcome taxonomy.
func (c *Client) classifyWrite(resp *nethttp.Response, precondition string, quota *models.QuotaInfo) Result {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if precondition != "" {
			return Result{Outcome: models.OutcomeUpdated, Quota: quota}
		}
		return Result{Outcome: models.OutcomeCreated, Quota: quota}

	case resp.StatusCode == nethttp.StatusConflict:
		// Precondition mismatch or resource already at target state.
		// The call still consumed quota.
		return Result{Outcome: models.OutcomeAlreadyCurrent, Quota: quota}

	case resp.StatusCode == nethttp.StatusForbidden:
		body, _ := io.ReadAll(resp.Body)
		if isQuotaMessage(string(body)) {
			return Result{Outcome: models.OutcomeQuotaExhausted, Quota: quota,
				Err: fmt.Errorf("%w: %s", ErrQuotaExhausted, string(body))}
		}
		return Result{Outcome: models.OutcomeAuthFailure, Quota: quota,
			Err: fmt.Errorf("%w: status 403: %s", ErrAuthFailure, string(body))}

	case resp.StatusCode == nethttp.StatusUnauthorized:
		body, _ := io.ReadAll(resp.Body)
		return Result{Outcome: models.OutcomeAuthFailure, Quota: quota,
			Err: fmt.Errorf("%w: status 401: %s", ErrAuthFailure, string(body))}

	case resp.StatusCode == nethttp.StatusTooManyRequests:
		return Result{Outcome: models.OutcomeQuotaExhausted, Quota: quota,
			Err: fmt.Errorf("%w: status 429", ErrQuotaExhausted)}

	case resp.StatusCode == nethttp.StatusNotFound:
		// 404 on the write (unlike the lookup) means the repository or
		// branch itself is wrong - nothing a retry can fix.
		body, _ := io.ReadAll(resp.Body)
		return Result{Outcome: models.OutcomeFatal, Quota: quota,
			Err: fmt.Errorf("write target not found: status 404: %s", string(body))}

	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(resp.Body)
		return Result{Outcome: models.OutcomeTransient, Quota: quota,
			Err: fmt.Errorf("server error: status %d: %s", resp.StatusCode, string(body))}

	default:
		body, _ := io.ReadAll(resp.Body)
		return Result{Outcome: models.OutcomeFatal, Quota: quota,
			Err: fmt.Errorf("write failed: status %d: %s", resp.StatusCode, string(body))}
	}
}

// classifyError maps a lookup error onto the outcome taxonomy.
func classifyError(err error) models.Outcome {
	switch {
	case IsQuotaError(err):
		return models.OutcomeQuotaExhausted
	case IsAuthError(err):
		return models.OutcomeAuthFailure
	default:
		return models.OutcomeTransient
	}
}
