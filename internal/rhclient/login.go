package rhclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"
)

// NewHTTPClient returns a REST client rooted at the API base URL. Callers
// own it and must Close it.
func NewHTTPClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetHeader("Accept", "application/json")
}

// Login exchanges a matricula or e-mail and password for an access token.
func Login(ctx context.Context, hc *resty.Client, login, password string) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	resp, err := hc.R().
		SetContext(ctx).
		SetBody(map[string]string{"login": login, "password": password}).
		SetResult(&out).
		Post("/auth/login")
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return "", ErrUnauthorized
	case resp.IsError():
		return "", fmt.Errorf("login: unexpected status %d", resp.StatusCode())
	case out.AccessToken == "":
		return "", fmt.Errorf("login: response carried no token")
	}
	return out.AccessToken, nil
}
