// Package client is a Go client for the reclock REST API. Client satisfies
// editor.Store, so the conflict editor runs unchanged against a remote server.
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

	"github.com/obelixia/reclock/internal/apierror"
	"github.com/obelixia/reclock/internal/domain/activity"
	"github.com/obelixia/reclock/internal/domain/collection"
	"github.com/obelixia/reclock/internal/domain/record"
)

// DefaultTimeout bounds each request when no HTTP client is supplied.
const DefaultTimeout = 10 * time.Second

// Client talks to one reclock server. The tenant is derived by the server
// from the token; tenantID arguments exist to satisfy editor.Store and are
// ignored.
type Client struct {
	baseURL    string
	token      string
	sessionID  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token (API key or JWT).
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithSession tags writes with a session ID in the activity log.
func WithSession(sessionID string) Option {
	return func(c *Client) { c.sessionID = sessionID }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createRecordRequest struct {
	ID         string        `json:"id,omitempty"`
	Collection string        `json:"collection,omitempty"`
	Fields     record.Fields `json:"fields"`
}

type updateRecordRequest struct {
	Fields  record.Fields  `json:"fields"`
	Version record.Version `json:"version"`
	Replace bool           `json:"replace,omitempty"`
}

type forceRecordRequest struct {
	Fields  record.Fields `json:"fields"`
	Replace bool          `json:"replace,omitempty"`
}

type checkRecordRequest struct {
	Version record.Version `json:"version"`
	Fields  record.Fields  `json:"fields,omitempty"`
}

type checkRecordResponse struct {
	Status   string               `json:"status"`
	Conflict *record.ConflictInfo `json:"conflict,omitempty"`
}

type errorResponse struct {
	Error *struct {
		Code         string          `json:"code"`
		Message      string          `json:"message"`
		Details      json.RawMessage `json:"details,omitempty"`
		RecoveryHint string          `json:"recovery_hint,omitempty"`
	} `json:"error"`
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, "/health", nil, nil)
}

// Get returns a record.
func (c *Client) Get(ctx context.Context, _ string, id string) (*record.Record, error) {
	var rec record.Record
	if err := c.doRequest(ctx, http.MethodGet, "/v1/records/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create stores a new record.
func (c *Client) Create(ctx context.Context, req record.CreateRequest) (*record.Record, error) {
	var rec record.Record
	body := createRecordRequest{ID: req.ID, Collection: req.Collection, Fields: req.Fields}
	if err := c.doRequest(ctx, http.MethodPost, "/v1/records", body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns record references.
func (c *Client) List(ctx context.Context, opts record.ListRecordsOptions) ([]record.RecordRef, error) {
	q := url.Values{}
	if opts.Collection != "" {
		q.Set("collection", opts.Collection)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/v1/records"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Records []record.RecordRef `json:"records"`
	}
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, "/v1/records/"+url.PathEscape(id), nil, nil)
}

// ListCollections returns the tenant's collections.
func (c *Client) ListCollections(ctx context.Context) ([]collection.CollectionSummary, error) {
	var resp struct {
		Collections []collection.CollectionSummary `json:"collections"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/v1/collections", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Collections, nil
}

// Activity returns recent activity, newest first.
func (c *Client) Activity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	q := url.Values{}
	if opts.Collection != "" {
		q.Set("collection", opts.Collection)
	}
	if opts.RecordID != nil {
		q.Set("record_id", *opts.RecordID)
	}
	if opts.SessionID != nil {
		q.Set("session_id", *opts.SessionID)
	}
	if opts.ActivityType != nil {
		q.Set("type", string(*opts.ActivityType))
	}
	if opts.SinceVersion > 0 {
		q.Set("since_version", strconv.FormatInt(opts.SinceVersion, 10))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/v1/activity"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Activity []activity.ActivityEntry `json:"activity"`
	}
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Activity, nil
}

// Check asks whether version is still current. A nil ConflictInfo means ok.
func (c *Client) Check(ctx context.Context, id string, version record.Version, fields record.Fields) (*record.ConflictInfo, error) {
	var resp checkRecordResponse
	body := checkRecordRequest{Version: version, Fields: fields}
	if err := c.doRequest(ctx, http.MethodPost, "/v1/records/"+url.PathEscape(id)+"/check", body, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "conflict" {
		return resp.Conflict, nil
	}
	return nil, nil
}

// GuardedUpdate writes fields if the stored version is still req.Version.
func (c *Client) GuardedUpdate(ctx context.Context, _ string, req record.UpdateRequest) record.Outcome {
	body := updateRecordRequest{Fields: req.Fields, Version: req.Version, Replace: req.Replace}
	return c.outcome(ctx, "/v1/records/"+url.PathEscape(req.ID), body)
}

// ForceUpdate overwrites fields without a version check.
func (c *Client) ForceUpdate(ctx context.Context, _ string, req record.ForceRequest) record.Outcome {
	body := forceRecordRequest{Fields: req.Fields, Replace: req.Replace}
	return c.outcome(ctx, "/v1/records/"+url.PathEscape(req.ID)+"/force", body)
}

func (c *Client) outcome(ctx context.Context, path string, body any) record.Outcome {
	var rec record.Record
	err := c.doRequest(ctx, http.MethodPut, path, body, &rec)
	if err == nil {
		return record.Succeeded(&rec)
	}

	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Code == apierror.CodeVersionConflict {
		var info record.ConflictInfo
		if jsonErr := json.Unmarshal(apiErr.details, &info); jsonErr != nil {
			return record.Failed(fmt.Errorf("%w: %w: conflict details: %v", record.ErrStoreFailure, ErrInvalidResponse, jsonErr))
		}
		return record.Conflicted(&info)
	}
	return record.Failed(err)
}

// doRequest performs an HTTP request with JSON encoding. Non-2xx responses
// are returned as *Error.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any, respBody any) error {
	var reader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %w: %v", record.ErrStoreFailure, ErrUnreachable, err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.sessionID != "" {
		req.Header.Set("X-Session-Id", c.sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w: %v", record.ErrStoreFailure, ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("%w: %w: %v", record.ErrStoreFailure, ErrInvalidResponse, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	var body errorResponse
	if err := json.Unmarshal(bodyBytes, &body); err != nil || body.Error == nil {
		return &Error{
			Status:  resp.StatusCode,
			Code:    apierror.CodeInternal,
			Message: strings.TrimSpace(string(bodyBytes)),
		}
	}
	return &Error{
		Status:       resp.StatusCode,
		Code:         body.Error.Code,
		Message:      body.Error.Message,
		RecoveryHint: body.Error.RecoveryHint,
		details:      body.Error.Details,
	}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
