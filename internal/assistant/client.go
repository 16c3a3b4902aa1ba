package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultListLimit = 100

// Client talks to the Assistants API over plain JSON.
type Client struct {
	apiKey string
	base   string
	client *http.Client
}

var _ Service = (*Client)(nil)

// New builds a Client. The API key is not validated locally; the remote
// service rejects bad keys on the first call.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		apiKey: cfg.APIKey,
		base:   base,
		client: pickHTTPClient(cfg.HTTPClient),
	}
}

func (c *Client) UploadFile(ctx context.Context, name string, body io.Reader) (File, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("purpose", "assistants"); err != nil {
		return File{}, err
	}
	part, err := writer.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return File{}, err
	}
	if _, err := io.Copy(part, body); err != nil {
		return File{}, fmt.Errorf("read upload %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return File{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/files", &buf)
	if err != nil {
		return File{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	var file File
	if err := c.send(req, &file); err != nil {
		return File{}, err
	}
	return file, nil
}

func (c *Client) CreateVectorStore(ctx context.Context, name string, fileIDs []string) (VectorStore, error) {
	payload := map[string]any{
		"name":     name,
		"file_ids": fileIDs,
	}
	var store VectorStore
	if err := c.doJSON(ctx, http.MethodPost, "/vector_stores", payload, &store); err != nil {
		return VectorStore{}, err
	}
	return store, nil
}

func (c *Client) CreateAssistant(ctx context.Context, params AssistantParams) (Assistant, error) {
	payload := map[string]any{
		"name":         params.Name,
		"instructions": params.Instructions,
		"model":        params.Model,
		"tools":        []map[string]string{{"type": "file_search"}},
	}
	if len(params.VectorStoreIDs) > 0 {
		payload["tool_resources"] = fileSearchResources(params.VectorStoreIDs)
	}
	var created Assistant
	if err := c.doJSON(ctx, http.MethodPost, "/assistants", payload, &created); err != nil {
		return Assistant{}, err
	}
	return created, nil
}

func (c *Client) AttachVectorStores(ctx context.Context, assistantID string, storeIDs []string) (Assistant, error) {
	if assistantID == "" {
		return Assistant{}, fmt.Errorf("assistant id cannot be empty")
	}
	payload := map[string]any{
		"tools":          []map[string]string{{"type": "file_search"}},
		"tool_resources": fileSearchResources(storeIDs),
	}
	var updated Assistant
	if err := c.doJSON(ctx, http.MethodPost, "/assistants/"+url.PathEscape(assistantID), payload, &updated); err != nil {
		return Assistant{}, err
	}
	return updated, nil
}

func (c *Client) CreateThread(ctx context.Context) (Thread, error) {
	var thread Thread
	if err := c.doJSON(ctx, http.MethodPost, "/threads", map[string]any{}, &thread); err != nil {
		return Thread{}, err
	}
	return thread, nil
}

func (c *Client) CreateMessage(ctx context.Context, threadID, role, content string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, fmt.Errorf("message content cannot be empty")
	}
	payload := map[string]string{
		"role":    role,
		"content": content,
	}
	var msg Message
	if err := c.doJSON(ctx, http.MethodPost, threadPath(threadID, "messages"), payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (c *Client) CreateRun(ctx context.Context, threadID string, params RunParams) (Run, error) {
	if params.AssistantID == "" {
		return Run{}, fmt.Errorf("assistant id cannot be empty")
	}
	payload := map[string]string{"assistant_id": params.AssistantID}
	if params.Instructions != "" {
		payload["instructions"] = params.Instructions
	}
	if params.AdditionalInstructions != "" {
		payload["additional_instructions"] = params.AdditionalInstructions
	}
	var run Run
	if err := c.doJSON(ctx, http.MethodPost, threadPath(threadID, "runs"), payload, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (Run, error) {
	var run Run
	path := threadPath(threadID, "runs") + "/" + url.PathEscape(runID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListMessages returns thread messages oldest first, following pagination.
func (c *Client) ListMessages(ctx context.Context, threadID string, params ListMessagesParams) ([]Message, error) {
	limit := params.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	var (
		messages []Message
		after    string
	)
	for {
		query := url.Values{}
		query.Set("order", "asc")
		query.Set("limit", strconv.Itoa(limit))
		if params.RunID != "" {
			query.Set("run_id", params.RunID)
		}
		if after != "" {
			query.Set("after", after)
		}
		var page struct {
			Data    []Message `json:"data"`
			HasMore bool      `json:"has_more"`
			LastID  string    `json:"last_id"`
		}
		path := threadPath(threadID, "messages") + "?" + query.Encode()
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		messages = append(messages, page.Data...)
		if !page.HasMore || page.LastID == "" || page.LastID == after {
			return messages, nil
		}
		after = page.LastID
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", betaHeaderValue)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return newAPIError(resp, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func threadPath(threadID, resource string) string {
	return "/threads/" + url.PathEscape(threadID) + "/" + resource
}

func fileSearchResources(storeIDs []string) map[string]any {
	return map[string]any{
		"file_search": map[string]any{
			"vector_store_ids": storeIDs,
		},
	}
}
