package calcapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Login submits the /login form. The session cookie is kept in the client's jar.
// The server answers both outcomes with a page, so a response that still ends on
// /login after redirects is treated as a rejection.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if c.http().Jar == nil {
		return errors.New("calcapi: http client has no cookie jar")
	}
	final, err := c.postForm(ctx, "login", "/login", username, password)
	if err != nil {
		return err
	}
	if final == "/login" {
		return ErrLoginRejected
	}
	return nil
}

// Register creates an account through the /register form. The server sends a
// new account on to /login and a taken name back to /register.
func (c *Client) Register(ctx context.Context, username, password string) error {
	final, err := c.postForm(ctx, "register", "/register", username, password)
	if err != nil {
		return err
	}
	switch final {
	case "/login":
		return nil
	case "/register":
		return ErrUsernameTaken
	default:
		return fmt.Errorf("calcapi register: unexpected landing page %q", final)
	}
}

// postForm posts credentials to path and returns the path the client ended
// on after redirects.
func (c *Client) postForm(ctx context.Context, action, path, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", errors.New("calcapi: username required")
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	res, err := c.http().Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyBytes))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("calcapi %s http %d", action, res.StatusCode)
	}
	final := path
	if res.Request != nil {
		final = res.Request.URL.Path
	}
	if final != "/" {
		final = strings.TrimRight(final, "/")
	}
	return final, nil
}

func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyBytes))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("calcapi logout http %d", res.StatusCode)
	}
	return nil
}
