// Package docserver talks to the document server REST API and normalises its
// payloads into domain types. Nothing outside this package sees wire shapes.
package docserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// Client is a document server client bound to at most one student session.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    string
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the document server root URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client without a student session.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithSession returns a copy of the client that sends the given Cookie header
// on every request.
func (c *Client) WithSession(cookie string) *Client {
	clone := *c
	clone.session = cookie
	return &clone
}

// Session returns the Cookie header the client sends.
func (c *Client) Session() string {
	return c.session
}

// Login authenticates a student and returns the member plus the session
// cookie to replay on later calls.
func (c *Client) Login(ctx context.Context, memberID, password string) (*domain.Member, string, error) {
	payload := map[string]string{"memberId": memberID, "password": password}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.do(ctx, http.MethodPost, "/auth/login", nil, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", decodeError(resp)
	}

	var wire memberWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, "", fmt.Errorf("decode login response: %w", err)
	}
	return wire.toDomain(), sessionFromCookies(resp.Cookies()), nil
}

// Me returns the member bound to the current session.
func (c *Client) Me(ctx context.Context) (*domain.Member, error) {
	var wire memberWire
	if err := c.getJSON(ctx, "/auth/me", nil, &wire); err != nil {
		return nil, err
	}
	return wire.toDomain(), nil
}

// Ping checks that the document server answers at all. Any HTTP response,
// including 401, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, "")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// ListDepartments returns departments with both an id and a name.
func (c *Client) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	var wire []departmentWire
	if err := c.getJSON(ctx, "/api/departments", nil, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.Department, 0, len(wire))
	for _, w := range wire {
		if d, ok := w.toDomain(); ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// ListDocTypes returns the doc types of a department.
func (c *Client) ListDocTypes(ctx context.Context, departmentID string) ([]domain.DocType, error) {
	var wire []docTypeWire
	path := "/api/departments/" + url.PathEscape(departmentID) + "/doc-types"
	if err := c.getJSON(ctx, path, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.DocType, 0, len(wire))
	for _, w := range wire {
		if dt, ok := w.toDomain(); ok {
			out = append(out, dt)
		}
	}
	return out, nil
}

// RequiredFields returns the required form fields of a doc type.
func (c *Client) RequiredFields(ctx context.Context, docTypeID string) ([]domain.RequiredField, error) {
	var wire []json.RawMessage
	path := "/api/doc-types/" + url.PathEscape(docTypeID) + "/required-fields"
	if err := c.getJSON(ctx, path, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.RequiredField, 0, len(wire))
	for i, raw := range wire {
		out = append(out, requiredFieldFromWire(raw, i))
	}
	return out, nil
}

// Deadline returns the deadline of a doc type, or nil when it has none.
func (c *Client) Deadline(ctx context.Context, docTypeID string) (*domain.DeadlineInfo, error) {
	path := "/api/doc-types/" + url.PathEscape(docTypeID) + "/deadline"
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode >= 300:
		return nil, decodeError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read deadline: %w", err)
	}
	return deadlineFromWire(body), nil
}

// CreateSubmission uploads a new submission for a doc type.
func (c *Client) CreateSubmission(ctx context.Context, docTypeID, fieldsJSON string, file domain.Upload) (*domain.SubmissionSummary, error) {
	fields := map[string]string{"docTypeId": docTypeID}
	if fieldsJSON != "" {
		fields["fieldsJson"] = fieldsJSON
	}
	var wire summaryWire
	if err := c.sendMultipart(ctx, http.MethodPost, "/api/submissions", fields, &file, &wire); err != nil {
		return nil, err
	}
	return wire.toDomain(), nil
}

// UpdateSubmission overwrites the file and fields of an existing submission.
// The status does not change until SubmitSubmission is called.
func (c *Client) UpdateSubmission(ctx context.Context, submissionID, fieldsJSON string, file *domain.Upload) (*domain.SubmissionSummary, error) {
	fields := map[string]string{}
	if fieldsJSON != "" {
		fields["fieldsJson"] = fieldsJSON
	}
	var wire summaryWire
	path := "/api/submissions/" + url.PathEscape(submissionID)
	if err := c.sendMultipart(ctx, http.MethodPut, path, fields, file, &wire); err != nil {
		return nil, err
	}
	return wire.toDomain(), nil
}

// SubmitSubmission finalises a submission in the given mode.
func (c *Client) SubmitSubmission(ctx context.Context, submissionID string, mode domain.SubmitMode) (*domain.SubmissionSummary, error) {
	var wire summaryWire
	path := "/api/submissions/" + url.PathEscape(submissionID) + "/submit"
	if err := c.sendJSON(ctx, http.MethodPost, path, map[string]string{"mode": string(mode)}, &wire); err != nil {
		return nil, err
	}
	return wire.toDomain(), nil
}

// SubmissionSummary returns the current status snapshot of a submission.
func (c *Client) SubmissionSummary(ctx context.Context, submissionID string) (*domain.SubmissionSummary, error) {
	var wire summaryWire
	if err := c.getJSON(ctx, "/api/submissions/"+url.PathEscape(submissionID), nil, &wire); err != nil {
		return nil, err
	}
	return wire.toDomain(), nil
}

// ReviewResult returns the automatic review verdict of a submission.
func (c *Client) ReviewResult(ctx context.Context, submissionID string) (*domain.ReviewResult, error) {
	var wire reviewWire
	path := "/api/submissions/" + url.PathEscape(submissionID) + "/review-result"
	if err := c.getJSON(ctx, path, nil, &wire); err != nil {
		return nil, err
	}
	return wire.toDomain(), nil
}

// ListMySubmissions returns the logged-in student's latest submissions.
func (c *Client) ListMySubmissions(ctx context.Context, filter domain.SubmissionFilter) ([]domain.SubmissionRow, error) {
	query := url.Values{}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		query.Set("status", strings.Join(statuses, ","))
	}
	var wire []rowWire
	if err := c.getJSON(ctx, "/api/submissions/my", query, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.SubmissionRow, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toDomain())
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, method, path, nil, bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (c *Client) sendMultipart(ctx context.Context, method, path string, fields map[string]string, file *domain.Upload, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, val := range fields {
		if err := w.WriteField(key, val); err != nil {
			return err
		}
	}
	if file != nil {
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(file.FileName)))
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			return err
		}
		if _, err := part.Write(file.Content); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	resp, err := c.do(ctx, method, path, nil, &buf, w.FormDataContentType())
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.session != "" {
		req.Header.Set("Cookie", c.session)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("docserver request failed",
			zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.Debug("docserver request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))
	return resp, nil
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode %s: %w", resp.Request.URL.Path, err)
	}
	return nil
}

func sessionFromCookies(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		if ck.Name == "" || ck.MaxAge < 0 {
			continue
		}
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}
