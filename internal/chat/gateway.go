package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Gateway is an Adapter backed by the HTTP chat gateway (the process that
// owns the platform connection). All calls are request/response JSON.
type Gateway struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewGateway creates a gateway client. timeout bounds every call.
func NewGateway(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (g *Gateway) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 300:
		return fmt.Errorf("gateway %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// SendMessage posts content to a channel and returns the new message id.
func (g *Gateway) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	in := map[string]string{"content": content}
	if err := g.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/messages", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// EditMessage replaces the content of an existing message.
func (g *Gateway) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	in := map[string]string{"content": content}
	return g.do(ctx, http.MethodPatch, "/channels/"+url.PathEscape(channelID)+"/messages/"+url.PathEscape(messageID), in, nil)
}

// DeleteMessage removes a message; a missing message is reported as ErrNotFound.
func (g *Gateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return g.do(ctx, http.MethodDelete, "/channels/"+url.PathEscape(channelID)+"/messages/"+url.PathEscape(messageID), nil, nil)
}

// FetchMessage reports whether the message still exists.
func (g *Gateway) FetchMessage(ctx context.Context, channelID, messageID string) (bool, error) {
	err := g.do(ctx, http.MethodGet, "/channels/"+url.PathEscape(channelID)+"/messages/"+url.PathEscape(messageID), nil, nil)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListMessages returns up to limit messages of a channel, oldest first.
func (g *Gateway) ListMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	path := "/channels/" + url.PathEscape(channelID) + "/messages?limit=" + strconv.Itoa(limit)
	if err := g.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// CreateChannel creates a channel under category with permission overwrites.
func (g *Gateway) CreateChannel(ctx context.Context, category, name string, overwrites []PermissionOverwrite) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	in := map[string]any{
		"category":   category,
		"name":       name,
		"overwrites": overwrites,
	}
	if err := g.do(ctx, http.MethodPost, "/channels", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// DeleteChannel removes a channel and everything in it.
func (g *Gateway) DeleteChannel(ctx context.Context, channelID string) error {
	return g.do(ctx, http.MethodDelete, "/channels/"+url.PathEscape(channelID), nil, nil)
}

// ResolveRole returns the role id for a name, or empty when absent.
func (g *Gateway) ResolveRole(ctx context.Context, name string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := g.do(ctx, http.MethodGet, "/roles/"+url.PathEscape(name), nil, &out)
	if err == ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

// HasRole reports whether the user holds the role.
func (g *Gateway) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	var out struct {
		HasRole bool `json:"has_role"`
	}
	err := g.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/roles/"+url.PathEscape(roleID), nil, &out)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return out.HasRole, nil
}
