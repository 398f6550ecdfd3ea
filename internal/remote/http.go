package remote

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

	"github.com/google/uuid"
)

// TokenSource supplies the bearer token for each request, typically
// backed by the system keyring.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource returning a fixed token, useful in tests.
type StaticToken string

func (t StaticToken) Token() (string, error) { return string(t), nil }

// HTTPClient is the REST implementation of Client. It handles bearer
// authentication, JSON marshaling, pagination, and automatic retry with
// exponential backoff on HTTP 429.
type HTTPClient struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	maxRetries int
}

// NewHTTPClient creates a client for the task service rooted at baseURL.
func NewHTTPClient(baseURL string, tokens TokenSource, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 3,
	}
}

// errorResponse is the service's JSON error envelope.
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// listPage is the paginated envelope for collection endpoints.
type listPage[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// ListTaskLists retrieves every task list, following pagination.
func (c *HTTPClient) ListTaskLists(ctx context.Context) ([]TaskList, error) {
	var lists []TaskList
	pageToken := ""
	for {
		path := "/v1/users/@me/lists"
		if pageToken != "" {
			path += "?pageToken=" + url.QueryEscape(pageToken)
		}
		var page listPage[TaskList]
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		lists = append(lists, page.Items...)
		if page.NextPageToken == "" {
			return lists, nil
		}
		pageToken = page.NextPageToken
	}
}

// DefaultTaskList retrieves the account's default list.
func (c *HTTPClient) DefaultTaskList(ctx context.Context) (*TaskList, error) {
	var list TaskList
	if err := c.do(ctx, http.MethodGet, "/v1/users/@me/lists/@default", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// InsertTaskList creates a new task list.
func (c *HTTPClient) InsertTaskList(ctx context.Context, title string) (*TaskList, error) {
	var created TaskList
	body := map[string]string{"title": title}
	if err := c.do(ctx, http.MethodPost, "/v1/users/@me/lists", body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateTaskList updates a task list's title.
func (c *HTTPClient) UpdateTaskList(ctx context.Context, list TaskList) (*TaskList, error) {
	var updated TaskList
	path := "/v1/users/@me/lists/" + url.PathEscape(list.ID)
	if err := c.do(ctx, http.MethodPut, path, list, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTaskList deletes a task list and all its tasks.
func (c *HTTPClient) DeleteTaskList(ctx context.Context, listID string) error {
	path := "/v1/users/@me/lists/" + url.PathEscape(listID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListTasks retrieves the tasks of a list, following pagination.
func (c *HTTPClient) ListTasks(
	ctx context.Context,
	listID string,
	opts ListTasksOptions,
) ([]Task, error) {
	params := url.Values{}
	if !opts.UpdatedSince.IsZero() {
		params.Set("updatedMin", opts.UpdatedSince.UTC().Format(time.RFC3339))
	}
	if opts.ShowCompleted {
		params.Set("showCompleted", "true")
	}
	if opts.ShowHidden {
		params.Set("showHidden", "true")
	}

	var tasks []Task
	for {
		path := "/v1/lists/" + url.PathEscape(listID) + "/tasks"
		if len(params) > 0 {
			path += "?" + params.Encode()
		}
		var page listPage[Task]
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		tasks = append(tasks, page.Items...)
		if page.NextPageToken == "" {
			return tasks, nil
		}
		params.Set("pageToken", page.NextPageToken)
	}
}

// InsertTask creates a task, threading the optional parent and
// previous-sibling ordering hints.
func (c *HTTPClient) InsertTask(
	ctx context.Context,
	listID string,
	task Task,
	parentID, previousID string,
) (*Task, error) {
	params := url.Values{}
	if parentID != "" {
		params.Set("parent", parentID)
	}
	if previousID != "" {
		params.Set("previous", previousID)
	}

	path := "/v1/lists/" + url.PathEscape(listID) + "/tasks"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var created Task
	if err := c.do(ctx, http.MethodPost, path, task, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateTask updates a task's fields.
func (c *HTTPClient) UpdateTask(ctx context.Context, listID string, task Task) (*Task, error) {
	var updated Task
	path := "/v1/lists/" + url.PathEscape(listID) + "/tasks/" + url.PathEscape(task.ID)
	if err := c.do(ctx, http.MethodPut, path, task, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTask deletes a task.
func (c *HTTPClient) DeleteTask(ctx context.Context, listID, taskID string) error {
	path := "/v1/lists/" + url.PathEscape(listID) + "/tasks/" + url.PathEscape(taskID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// MoveTask repositions a task, optionally into another list.
func (c *HTTPClient) MoveTask(
	ctx context.Context,
	listID, taskID, parentID, previousID, destinationListID string,
) (*Task, error) {
	params := url.Values{}
	if parentID != "" {
		params.Set("parent", parentID)
	}
	if previousID != "" {
		params.Set("previous", previousID)
	}
	if destinationListID != "" {
		params.Set("destinationTasklist", destinationListID)
	}

	path := "/v1/lists/" + url.PathEscape(listID) + "/tasks/" + url.PathEscape(taskID) + "/move"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var moved Task
	if err := c.do(ctx, http.MethodPost, path, nil, &moved); err != nil {
		return nil, err
	}
	return &moved, nil
}

// ClearCompleted hides all completed tasks of a list.
func (c *HTTPClient) ClearCompleted(ctx context.Context, listID string) error {
	path := "/v1/lists/" + url.PathEscape(listID) + "/clear"
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON (de)serialization.
func (c *HTTPClient) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("getting access token: %w", err)
	}

	reqURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Rebuild the body reader on retries since it was consumed.
		if attempt > 0 && body != nil {
			data, _ := json.Marshal(body)
			bodyReader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-Id", uuid.New().String())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if err := classifyStatus(resp.StatusCode, method, path, respBody); err != nil {
			return err
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// classifyStatus maps non-2xx responses onto the package error types.
func classifyStatus(status int, method, path string, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	message := string(body)
	var envelope errorResponse
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Message: message}
	case http.StatusNotFound, http.StatusGone:
		return &NotFoundError{Resource: method + " " + path}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &ValidationError{Message: message}
	default:
		return fmt.Errorf("unexpected status %d on %s %s: %s", status, method, path, message)
	}
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
