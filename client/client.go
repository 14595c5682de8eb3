// Package client is the Go SDK for the comments API: typed wire calls, a
// page cache keyed by query scope, and optimistic submission with rollback.
package client

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
)

const requestTimeout = 15 * time.Second

type Attachment struct {
	ID        int64  `json:"id"`
	CommentID int64  `json:"commentId"`
	FileURL   string `json:"fileUrl"`
	FileType  string `json:"fileType"`
}

type Comment struct {
	ID           int64        `json:"id"`
	UserName     string       `json:"userName"`
	Email        string       `json:"email"`
	HomePage     string       `json:"homePage,omitempty"`
	Text         string       `json:"text"`
	ParentID     *int64       `json:"parentId"`
	CreatedAt    time.Time    `json:"createdAt"`
	RepliesCount int64        `json:"repliesCount"`
	Attachments  []Attachment `json:"attachments"`

	// Provisional marks a locally synthesized comment awaiting server
	// confirmation. Never sent or received over the wire.
	Provisional bool `json:"-"`
}

type Page struct {
	Data       []Comment `json:"data"`
	NextCursor *string   `json:"nextCursor"`
}

// Query selects one page. A nil ParentID reads the root feed. Zero values
// take the server defaults.
type Query struct {
	ParentID *int64
	Limit    int
	Cursor   string
	SortBy   string
	Order    string
}

// Draft is a comment the user is submitting.
type Draft struct {
	UserName     string
	Email        string
	HomePage     string
	Text         string
	ParentID     *int64
	CaptchaToken string
	Files        []DraftFile
}

type DraftFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// APIError is a non-2xx response decoded into the server's error shape.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("api: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("api: %s (status %d): %v", e.Message, e.StatusCode, e.Fields)
}

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: requestTimeout},
	}
}

// FetchPage reads one page of comments.
func (c *Client) FetchPage(ctx context.Context, q Query) (Page, error) {
	var page Page

	path := "/api/comments"
	if q.ParentID != nil {
		path = fmt.Sprintf("/api/comments/%d/replies", *q.ParentID)
	}

	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	if q.SortBy != "" {
		params.Set("sortBy", q.SortBy)
	}
	if q.Order != "" {
		params.Set("sortOrder", q.Order)
	}

	target := c.baseURL + path
	if enc := params.Encode(); enc != "" {
		target += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return page, fmt.Errorf("build request: %w", err)
	}

	if err := c.do(req, &page); err != nil {
		return Page{}, err
	}
	return page, nil
}

// GetComment reads a single comment by id.
func (c *Client) GetComment(ctx context.Context, id int64) (Comment, error) {
	var out Comment

	target := fmt.Sprintf("%s/api/comments/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return out, fmt.Errorf("build request: %w", err)
	}

	if err := c.do(req, &out); err != nil {
		return Comment{}, err
	}
	return out, nil
}

// CreateComment submits a draft: plain JSON without files, multipart with.
func (c *Client) CreateComment(ctx context.Context, d Draft) (Comment, error) {
	var out Comment

	var (
		body        io.Reader
		contentType string
		err         error
	)
	if len(d.Files) == 0 {
		body, contentType, err = encodeCreateJSON(d)
	} else {
		body, contentType, err = encodeCreateForm(d)
	}
	if err != nil {
		return out, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/comments", body)
	if err != nil {
		return out, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	if err := c.do(req, &out); err != nil {
		return Comment{}, err
	}
	return out, nil
}

func encodeCreateJSON(d Draft) (io.Reader, string, error) {
	payload := struct {
		UserName     string `json:"userName"`
		Email        string `json:"email"`
		HomePage     string `json:"homePage,omitempty"`
		Text         string `json:"text"`
		ParentID     *int64 `json:"parentId,omitempty"`
		CaptchaToken string `json:"captchaToken"`
	}{
		UserName:     d.UserName,
		Email:        d.Email,
		HomePage:     d.HomePage,
		Text:         d.Text,
		ParentID:     d.ParentID,
		CaptchaToken: d.CaptchaToken,
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("marshal draft: %w", err)
	}
	return bytes.NewReader(b), "application/json", nil
}

func encodeCreateForm(d Draft) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"userName":     d.UserName,
		"email":        d.Email,
		"homePage":     d.HomePage,
		"text":         d.Text,
		"captchaToken": d.CaptchaToken,
	}
	if d.ParentID != nil {
		fields["parentId"] = strconv.FormatInt(*d.ParentID, 10)
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", name, err)
		}
	}

	for _, f := range d.Files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="attachments"; filename=%q`, f.Name))
		if f.ContentType != "" {
			header.Set("Content-Type", f.ContentType)
		}
		part, err := mw.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("write form file %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write form file %s: %w", f.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// PageLoader adapts the client into the cache's Loader.
func (c *Client) PageLoader() Loader {
	return func(ctx context.Context, k Key) (Page, error) {
		q := Query{Limit: k.Limit, Cursor: k.Cursor, SortBy: k.SortBy, Order: k.Order}
		if k.Parent != RootScope {
			pid := k.Parent
			q.ParentID = &pid
		}
		return c.FetchPage(ctx, q)
	}
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: "request failed"}

	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Fields = body.Fields
	}
	return apiErr
}
