// Package tavus starts and ends hosted avatar video conversations.
package tavus

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"olivia/internal/domain"
	"olivia/internal/observability/logging"
	"olivia/internal/ports"
)

const defaultBaseURL = "https://tavusapi.com/v2"

// ErrMissingAPIKey is returned when the client has no API key configured.
var ErrMissingAPIKey = errors.New("avatar API key is not configured")

type Config struct {
	APIKey     string
	BaseURL    string
	ReplicaID  string
	PersonaID  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements ports.AvatarAPI.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient, logger: logging.WithComponent("avatar-client")}
}

var _ ports.AvatarAPI = (*Client)(nil)

type createConversationRequest struct {
	ReplicaID             string `json:"replica_id"`
	PersonaID             string `json:"persona_id"`
	ConversationalContext string `json:"conversational_context"`
	CustomGreeting        string `json:"custom_greeting,omitempty"`
}

func (c *Client) CreateConversation(ctx context.Context, userName string) (domain.AvatarConversation, error) {
	body := createConversationRequest{
		ReplicaID:             c.cfg.ReplicaID,
		PersonaID:             c.cfg.PersonaID,
		ConversationalContext: conversationalContext(userName),
		CustomGreeting:        greeting(userName),
	}

	var out domain.AvatarConversation
	if err := c.do(ctx, http.MethodPost, "/conversations", body, &out); err != nil {
		return domain.AvatarConversation{}, err
	}
	if out.ConversationID == "" || out.ConversationURL == "" {
		return domain.AvatarConversation{}, errors.New("avatar API returned an incomplete conversation")
	}
	c.logger.Info().Str("conversationId", out.ConversationID).Msg("Avatar conversation created")
	return out, nil
}

func (c *Client) EndConversation(ctx context.Context, conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("conversation id is empty")
	}
	path := "/conversations/" + url.PathEscape(conversationID) + "/end"
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in any, out any) error {
	if c.cfg.APIKey == "" {
		return ErrMissingAPIKey
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode avatar request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build avatar request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("requestId", requestID).Str("path", path).Msg("Avatar request failed")
		return fmt.Errorf("avatar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().Int("status", resp.StatusCode).Str("requestId", requestID).Str("path", path).Msg("Avatar request rejected")
		return fmt.Errorf("avatar API %s %s: unexpected status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode avatar response: %w", err)
	}
	return nil
}

func conversationalContext(userName string) string {
	name := strings.TrimSpace(userName)
	if name == "" {
		name = "the patient"
	}
	return fmt.Sprintf("You are Olivia, a friendly AI health companion. You are talking with %s about their daily eating, "+
		"exercise, sleep and lifestyle routines to help personalize their care plan. Keep answers short and warm.", name)
}

func greeting(userName string) string {
	fields := strings.Fields(userName)
	if len(fields) == 0 {
		return "Hi! I'm Olivia, your AI health companion."
	}
	return fmt.Sprintf("Hi %s! I'm Olivia, your AI health companion.", fields[0])
}
