// Package github implements the remote document store on top of a
// GitHub-style contents API. The shared document lives as a single
// JSON file in a repository; writes are guarded by the file's blob SHA
// so concurrent clients cannot silently overwrite each other.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jbctechsolutions/yardsync/internal/domain/errors"
	"github.com/jbctechsolutions/yardsync/internal/domain/yard"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/logging"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/tracing"
)

const (
	// DefaultBaseURL is the public GitHub API endpoint.
	DefaultBaseURL = "https://api.github.com"
	// DefaultTimeout bounds every remote call.
	DefaultTimeout = 15 * time.Second
	// DefaultMaxWriteRetries is how many times a write re-fetches the
	// current SHA and tries again after a hash mismatch.
	DefaultMaxWriteRetries = 5
	// writeRetryDelay is the base delay between write attempts; the
	// actual delay grows linearly with the attempt number.
	writeRetryDelay = 500 * time.Millisecond

	commitMessage = "yardsync: update shared document"
)

// Client talks to the contents API for one file in one repository.
// It implements ports.RemoteStorePort.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	owner           string
	repo            string
	filePath        string
	branch          string
	timeout         time.Duration
	maxWriteRetries int
	tracer          *tracing.Tracer
	logger          *logging.Logger

	mu      sync.Mutex
	token   string
	lastSHA string // SHA from the most recent fetch or write
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at a different API host (GitHub
// Enterprise, a test server).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxWriteRetries bounds SHA-mismatch retries on write.
func WithMaxWriteRetries(n int) Option {
	return func(c *Client) {
		c.maxWriteRetries = n
	}
}

// WithBranch targets a branch other than the repository default.
func WithBranch(branch string) Option {
	return func(c *Client) {
		c.branch = branch
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a remote store client for the given repository file.
func NewClient(owner, repo, filePath, token string, opts ...Option) *Client {
	c := &Client{
		httpClient:      &http.Client{},
		baseURL:         DefaultBaseURL,
		owner:           owner,
		repo:            repo,
		filePath:        filePath,
		token:           token,
		timeout:         DefaultTimeout,
		maxWriteRetries: DefaultMaxWriteRetries,
		tracer:          tracing.Default(),
		logger:          logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves the current document and its content hash. A missing
// file is not an error: the caller gets an empty document and an empty
// hash, and the next write creates the file.
func (c *Client) Fetch(ctx context.Context) (*yard.Document, string, error) {
	ctx, span := c.tracer.StartRemoteSpan(ctx, http.MethodGet, c.filePath)
	doc, sha, err := c.fetch(ctx, span)
	if err != nil {
		span.EndWithError(err)
		return nil, "", err
	}
	span.End()
	return doc, sha, nil
}

func (c *Client) fetch(ctx context.Context, span *tracing.RemoteSpan) (*yard.Document, string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, c.contentsPath(), nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	span.SetStatusCode(resp.StatusCode)

	if resp.StatusCode == http.StatusNotFound {
		return yard.EmptyDocument(), "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", c.handleErrorResponse(resp)
	}

	var content contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return nil, "", errors.NewError(errors.CodeNetwork, "failed to decode contents response", err)
	}

	raw, err := decodeContent(content.Content)
	if err != nil {
		return nil, "", errors.NewError(errors.CodeNetwork, "failed to decode document content", err)
	}

	doc := yard.EmptyDocument()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, doc); err != nil {
			return nil, "", errors.NewError(errors.CodeValidation, "remote document is not valid JSON", err)
		}
	}
	if doc.Trucks == nil {
		doc.Trucks = []yard.Truck{}
	}
	if doc.Loadings == nil {
		doc.Loadings = []yard.Loading{}
	}

	c.setLastSHA(content.SHA)
	return doc, content.SHA, nil
}

// Write stores the document, conditioned on hash matching the current
// remote blob SHA. On a mismatch the current SHA is re-fetched and the
// write retried; when retries run out the caller gets a CONFLICT error
// and the queue escalates.
func (c *Client) Write(ctx context.Context, doc *yard.Document, hash string) (string, error) {
	ctx, span := c.tracer.StartRemoteSpan(ctx, http.MethodPut, c.filePath)
	sha, attempts, err := c.write(ctx, doc, hash)
	span.SetAttempts(attempts)
	if err != nil {
		span.EndWithError(err)
		return "", err
	}
	span.End()
	return sha, nil
}

func (c *Client) write(ctx context.Context, doc *yard.Document, hash string) (string, int, error) {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", 0, errors.NewError(errors.CodeValidation, "failed to encode document", err)
	}
	encoded := base64.StdEncoding.EncodeToString(payload)

	sha := hash
	var lastErr error

	for attempt := 1; attempt <= c.maxWriteRetries; attempt++ {
		if attempt > 1 {
			// Linear delay: 500ms, 1s, 1.5s...
			select {
			case <-ctx.Done():
				return "", attempt, errors.NewError(errors.CodeNetwork, "write cancelled", ctx.Err())
			case <-time.After(writeRetryDelay * time.Duration(attempt-1)):
			}
		}

		body, err := json.Marshal(writeRequest{
			Message: commitMessage,
			Content: encoded,
			SHA:     sha,
			Branch:  c.branch,
		})
		if err != nil {
			return "", attempt, errors.NewError(errors.CodeValidation, "failed to encode write request", err)
		}

		resp, err := c.doRequest(ctx, http.MethodPut, c.contentsPath(), body)
		if err != nil {
			return "", attempt, err
		}

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			var result writeResponse
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				resp.Body.Close()
				return "", attempt, errors.NewError(errors.CodeNetwork, "failed to decode write response", err)
			}
			resp.Body.Close()
			c.setLastSHA(result.Content.SHA)
			return result.Content.SHA, attempt, nil
		}

		if isHashMismatch(resp.StatusCode) {
			resp.Body.Close()
			lastErr = errors.ErrHashMismatch

			// Someone wrote in between. Pick up the SHA they left and
			// try once more on top of it.
			current, err := c.fetchSHA(ctx)
			if err != nil {
				return "", attempt, err
			}
			sha = current
			continue
		}

		err = c.handleErrorResponse(resp)
		resp.Body.Close()
		return "", attempt, err
	}

	conflictErr := errors.NewError(errors.CodeConflict,
		fmt.Sprintf("write rejected after %d attempts", c.maxWriteRetries), lastErr)
	errors.WithContext(conflictErr, "path", c.filePath)
	return "", c.maxWriteRetries, conflictErr
}

// TestConnection verifies the repository is reachable with the
// configured credentials.
func (c *Client) TestConnection(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("/repos/%s/%s", c.owner, c.repo), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp)
	}
	return nil
}

// SetToken swaps the bearer token, used when the config file changes
// while the client is running.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// LastSHA returns the content hash from the most recent fetch or write.
func (c *Client) LastSHA() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSHA
}

func (c *Client) setLastSHA(sha string) {
	c.mu.Lock()
	c.lastSHA = sha
	c.mu.Unlock()
}

// fetchSHA retrieves just the current blob SHA.
func (c *Client) fetchSHA(ctx context.Context) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, c.contentsPath(), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", c.handleErrorResponse(resp)
	}

	var content contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return "", errors.NewError(errors.CodeNetwork, "failed to decode contents response", err)
	}
	c.setLastSHA(content.SHA)
	return content.SHA, nil
}

func (c *Client) contentsPath() string {
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, c.repo, c.filePath)
	if c.branch != "" {
		path += "?ref=" + c.branch
	}
	return path
}

// doRequest performs one HTTP call under the configured deadline.
// Transport failures, including deadline expiry, come back as NETWORK
// errors and feed the queue's normal retry path.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, errors.NewError(errors.CodeNetwork, "failed to create request", err)
	}

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	req.Header.Set("Accept", "application/vnd.github+json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logging.LogRemoteRequest(ctx, c.logger, method, path)
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewError(errors.CodeNetwork, "request failed", err)
	}
	logging.LogRemoteResponse(ctx, c.logger, method, resp.StatusCode, time.Since(started))
	return resp, nil
}

// handleErrorResponse maps an error response to a domain error. The
// error kind is decided once here; nothing downstream inspects status
// codes or message text.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewError(errors.CodeNetwork,
			fmt.Sprintf("HTTP %d: failed to read error response", resp.StatusCode), err)
	}

	message := strings.TrimSpace(string(body))
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		message = errResp.Message
	}

	errCode := errors.CodeNetwork
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		errCode = errors.CodeUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		errCode = errors.CodeNotFound
	case isHashMismatch(resp.StatusCode):
		errCode = errors.CodeConflict
	case resp.StatusCode == http.StatusBadRequest:
		errCode = errors.CodeValidation
	}

	return errors.NewError(errCode,
		fmt.Sprintf("HTTP %d: %s", resp.StatusCode, message), nil)
}

// isHashMismatch reports whether the status signals the guarded SHA no
// longer matches. GitHub uses 409 for concurrent updates and 422 when
// the provided SHA is stale or missing.
func isHashMismatch(status int) bool {
	return status == http.StatusConflict || status == http.StatusUnprocessableEntity
}

// decodeContent decodes the base64 file content, which the API wraps
// with newlines.
func decodeContent(content string) ([]byte, error) {
	cleaned := strings.ReplaceAll(content, "\n", "")
	if cleaned == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(cleaned)
}
