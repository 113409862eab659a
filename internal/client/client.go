// Package client talks to the todo HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/s1natex/todo-api-GO/internal/tasks"
)

// APIError is a non-2xx answer other than 404.
type APIError struct {
	Status  int
	Code    string
	Details []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api: %d %s", e.Status, e.Code)
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	return msg
}

type Client struct {
	base *url.URL
	hc   *http.Client
}

// New returns a client for the API rooted at baseURL. A nil hc gets a
// client with a 10s timeout.
func New(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api url %q must be absolute", baseURL)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: u, hc: hc}, nil
}

func (c *Client) List(ctx context.Context) ([]tasks.Task, error) {
	var out []tasks.Task
	if err := c.do(ctx, http.MethodGet, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id int64) (tasks.Task, error) {
	var out tasks.Task
	err := c.do(ctx, http.MethodGet, itemPath(id), nil, &out)
	return out, err
}

func (c *Client) Create(ctx context.Context, description string) (tasks.Task, error) {
	var out tasks.Task
	err := c.do(ctx, http.MethodPost, "", descriptionBody{Description: description}, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id int64, description string) error {
	return c.do(ctx, http.MethodPut, itemPath(id), descriptionBody{Description: description}, nil)
}

func (c *Client) SetComplete(ctx context.Context, id int64, isComplete bool) error {
	p := itemPath(id) + "/incomplete"
	if isComplete {
		p = itemPath(id) + "/complete"
	}
	return c.do(ctx, http.MethodPut, p, nil, nil)
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, itemPath(id), nil, nil)
}

type descriptionBody struct {
	Description string `json:"description"`
}

type errorBody struct {
	Error   string `json:"error"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

func itemPath(id int64) string { return "/" + strconv.FormatInt(id, 10) }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+tasks.BasePath+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, tasks.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, req.URL.Path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
	var eb errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&eb); err != nil {
		return apiErr
	}
	if eb.Error != "" {
		apiErr.Code = eb.Error
	}
	for _, d := range eb.Details {
		apiErr.Details = append(apiErr.Details, d.Field+": "+d.Message)
	}
	return apiErr
}

// IsValidation reports whether err is the API rejecting the input.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity
}
