package octopus

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// CurrentUser returns the user that owns the API key.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var user User
	err := c.get(ctx, "get_current_user", "/api/users/me", nil, &user)
	return user, err
}

type apiKeyRequest struct {
	Purpose string `json:"Purpose"`
	Expires string `json:"Expires"`
}

type apiKeyResponse struct {
	ID     string `json:"Id"`
	APIKey string `json:"ApiKey"`
}

// CreateAPIKey creates a new API key for the user that expires after ttl.
func (c *Client) CreateAPIKey(ctx context.Context, userID, purpose string, ttl time.Duration) (string, error) {
	body := apiKeyRequest{
		Purpose: purpose,
		Expires: time.Now().Add(ttl).UTC().Format(time.RFC3339),
	}
	var created apiKeyResponse
	if err := c.do(ctx, "create_api_key", http.MethodPost, "/api/users/"+url.PathEscape(userID)+"/apikeys", nil, body, &created); err != nil {
		return "", err
	}
	return created.APIKey, nil
}

// LimitedAPIKey exchanges the client's key for one that expires after ttl. The guest
// key is returned unchanged.
func (c *Client) LimitedAPIKey(ctx context.Context, purpose string, ttl time.Duration) (string, error) {
	if c.apiKey == GuestAPIKey {
		return c.apiKey, nil
	}
	user, err := c.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return c.CreateAPIKey(ctx, user.ID, purpose, ttl)
}
