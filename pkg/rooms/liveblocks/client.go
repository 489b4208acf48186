// Package liveblocks talks to the hosted collaboration REST API, or to a roomserver which
// serves the same endpoints.
package liveblocks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/astromechza/automerge-docs/pkg/rooms"
)

var _ rooms.Backend = (*Client)(nil)

const (
	DefaultBaseURL   = "https://api.liveblocks.io"
	defaultUserAgent = "automerge-docs/0.1"
	requestTimeout   = 10 * time.Second
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api returned status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api returned status %d", e.Status)
}

type Client struct {
	baseURL   *url.URL
	secret    string
	http      *http.Client
	userAgent string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient builds a client for baseURL, authenticating with the secret key.
func NewClient(baseURL, secret string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		secret:    secret,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) CreateRoom(ctx context.Context, req rooms.CreateRoomRequest) (*rooms.Room, error) {
	var room rooms.Room
	if err := c.doJSON(ctx, http.MethodPost, "/v2/rooms", nil, req, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *Client) GetRoom(ctx context.Context, roomID string) (*rooms.Room, error) {
	var room rooms.Room
	if err := c.doJSON(ctx, http.MethodGet, "/v2/rooms/"+url.PathEscape(roomID), nil, nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *Client) GetRooms(ctx context.Context, q rooms.ListRoomsQuery) ([]rooms.Room, error) {
	values := url.Values{}
	if user := strings.TrimSpace(q.UserID); user != "" {
		values.Set("userId", user)
	}
	var payload struct {
		Data []rooms.Room `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v2/rooms", values, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

func (c *Client) UpdateRoom(ctx context.Context, roomID string, req rooms.UpdateRoomRequest) (*rooms.Room, error) {
	var room rooms.Room
	if err := c.doJSON(ctx, http.MethodPost, "/v2/rooms/"+url.PathEscape(roomID), nil, req, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v2/rooms/"+url.PathEscape(roomID), nil, nil, nil)
}

func (c *Client) TriggerInboxNotification(ctx context.Context, req rooms.TriggerNotificationRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/v2/inbox-notifications/trigger", nil, req, nil)
}

func (c *Client) InboxNotifications(ctx context.Context, userID string) ([]rooms.Notification, error) {
	var payload struct {
		Data []rooms.Notification `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v2/users/"+url.PathEscape(userID)+"/inbox-notifications", nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// Document fetches the latest save of the room's document.
func (c *Client) Document(ctx context.Context, roomID string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v2/rooms/"+url.PathEscape(roomID)+"/document", nil, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return raw, nil
}

// SyncURL is the websocket endpoint for syncing the room's document.
func (c *Client) SyncURL(roomID string) string {
	u := c.baseURL.JoinPath("v2", "rooms", url.PathEscape(roomID), "sync")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}

// AuthHeader carries the credentials for requests made outside the client, such as the
// websocket dial.
func (c *Client) AuthHeader() http.Header {
	h := http.Header{}
	if c.secret != "" {
		h.Set("Authorization", "Bearer "+c.secret)
	}
	return h
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	resp, err := c.do(ctx, method, path, query, reader)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do sends a request to path, whose segments must already be escaped.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	rel.RawQuery = query.Encode()
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = c.AuthHeader()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s %s: %w", method, path, errors.Join(rooms.ErrNotFound, apiErr))
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, apiErr)
	}
	return resp, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
