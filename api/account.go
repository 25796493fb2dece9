package api

import (
	"context"
	"net/http"

	"github.com/xeptore/flaw/v8"
)

type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"user_name"`
}

type Me struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user"`
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	body := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: username, Password: password}
	_, err := c.perform(ctx, http.MethodPost, "/api/login", nil, body)
	return err
}

func (c *Client) Register(ctx context.Context, username, password string) (*User, error) {
	body := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: username, Password: password}
	respBytes, err := c.perform(ctx, http.MethodPost, "/api/register", nil, body)
	if nil != err {
		return nil, err
	}

	respBody, err := decode[registerResponse](respBytes, flaw.P{"operation": "register"})
	if nil != err {
		return nil, err
	}
	return &respBody.User, nil
}

type registerResponse struct {
	OK   bool `json:"ok"`
	User User `json:"user"`
}

func (c *Client) Me(ctx context.Context) (*Me, error) {
	respBytes, err := c.perform(ctx, http.MethodGet, "/api/me", nil, nil)
	if nil != err {
		return nil, err
	}
	return decode[Me](respBytes, flaw.P{"operation": "me"})
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.perform(ctx, http.MethodPost, "/api/logout", nil, nil)
	return err
}
