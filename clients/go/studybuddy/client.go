// Package studybuddy provides a client for the StudyBuddy encrypted
// messaging API: identity registration, the public-key directory, the
// envelope codec, and the real-time channel.
package studybuddy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Ashifo7/StudyBuddy/internal/models"
)

// Client is a StudyBuddy API client.
type Client struct {
	BaseURL    string
	ConfigDir  string
	UserID     string
	Token      string
	HTTPClient *http.Client
}

// Profile holds the persisted client identity.
type Profile struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// NewClient creates a new client. Credentials are loaded from the config
// directory if present.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	configDir := os.Getenv("STUDYBUDDY_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".studybuddy")
	}

	c := &Client{
		BaseURL:    baseURL,
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	_ = c.LoadProfile()
	return c
}

// LoadProfile loads the saved identity from disk.
func (c *Client) LoadProfile() error {
	data, err := os.ReadFile(filepath.Join(c.ConfigDir, "profile.json"))
	if err != nil {
		return err
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return err
	}

	c.UserID = profile.ID
	c.Token = profile.Token
	return nil
}

// SaveProfile persists the identity to disk.
func (c *Client) SaveProfile() error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}

	data, _ := json.MarshalIndent(Profile{ID: c.UserID, Token: c.Token}, "", "  ")
	return os.WriteFile(filepath.Join(c.ConfigDir, "profile.json"), data, 0600)
}

// doRequest performs an HTTP request, attaching the bearer token when
// authed is true.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte, authed bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	return respBody, nil
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("studybuddy error %d: %s", e.StatusCode, e.Message)
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// RegisterResponse is the response from registration.
type RegisterResponse struct {
	ID         string `json:"id"`
	Token      string `json:"token"`
	ProfileURL string `json:"profile_url"`
}

// Register creates a new identity and persists its credentials.
func (c *Client) Register(ctx context.Context, name, email string) (*RegisterResponse, error) {
	body, _ := json.Marshal(RegisterRequest{Name: name, Email: email})
	respBody, err := c.doRequest(ctx, "POST", "/register", body, false)
	if err != nil {
		return nil, err
	}

	var resp RegisterResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}

	c.UserID = resp.ID
	c.Token = resp.Token
	if err := c.SaveProfile(); err != nil {
		return nil, err
	}

	return &resp, nil
}

// PublishPublicKey uploads this client's public key to the directory.
func (c *Client) PublishPublicKey(ctx context.Context, publicKeyB64 string) error {
	body, _ := json.Marshal(map[string]string{"publicKey": publicKeyB64})
	_, err := c.doRequest(ctx, "PUT", "/users/me/public-key", body, true)
	return err
}

// publicKeyResponse is the directory lookup response.
type publicKeyResponse struct {
	UserID    string `json:"userId"`
	PublicKey string `json:"publicKey"`
}

// GetPublicKey looks up another user's public key in the directory.
// Returns ("", nil) when the user exists but has not published one.
func (c *Client) GetPublicKey(ctx context.Context, userID string) (string, error) {
	respBody, err := c.doRequest(ctx, "GET", "/users/"+userID+"/public-key", nil, true)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}

	var resp publicKeyResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", err
	}
	return resp.PublicKey, nil
}

// messagesResponse is the history-fetch response.
type messagesResponse struct {
	Success   bool              `json:"success"`
	Envelopes []models.Envelope `json:"messages"`
}

// ListMessages fetches every envelope in a conversation, oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]models.Envelope, error) {
	respBody, err := c.doRequest(ctx, "GET", "/messages/"+conversationID, nil, true)
	if err != nil {
		return nil, err
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Envelopes, nil
}

// createMessageResponse is the REST append response.
type createMessageResponse struct {
	Success  bool             `json:"success"`
	Envelope *models.Envelope `json:"message"`
}

// SendMessage appends an envelope over REST, for callers without an open
// channel connection. The returned envelope carries its assigned id and
// timestamp.
func (c *Client) SendMessage(ctx context.Context, env *models.Envelope) (*models.Envelope, error) {
	body, _ := json.Marshal(env)
	respBody, err := c.doRequest(ctx, "POST", "/messages", body, true)
	if err != nil {
		return nil, err
	}

	var resp createMessageResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Envelope, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	respBody, err := c.doRequest(ctx, "GET", "/health", nil, false)
	if err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
