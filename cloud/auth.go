package cloud

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/sym"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		Organizations []struct {
			ID string `json:"id"`
		} `json:"organizations"`
	} `json:"user"`
}

// Login authenticates with email and password and stores the returned
// token (and organization, when the account has one) on the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", errors.NewInvalidRequestError("email and password are required")
	}

	var resp loginResponse
	err := c.do(ctx, "POST", "/auth/login", nil, loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return "", errors.Wrap(err, "login")
	}
	if resp.Token == "" {
		return "", errors.Wrap(errors.ErrUnauthorized, "login returned no token")
	}

	c.SetToken(resp.Token)
	if len(resp.User.Organizations) > 0 {
		c.SetOrgID(resp.User.Organizations[0].ID)
	}
	c.logger.Infow("Logged in to cloud",
		"symbol", sym.Cloud,
		"base_url", c.baseURL,
		"org_id", c.orgID,
	)
	return resp.Token, nil
}

// Logout invalidates the server-side session best-effort and clears the
// local token either way.
func (c *Client) Logout(ctx context.Context) {
	if c.Token() != "" {
		if err := c.do(ctx, "POST", "/auth/logout", nil, nil, nil); err != nil {
			c.logger.Debugw("Logout request failed",
				"symbol", sym.Cloud,
				"error", err,
			)
		}
	}
	c.SetToken("")
}

// DecodeToken decodes a JWT payload without verifying the signature. The
// API's tokens are only inspected client-side for their expiry.
func DecodeToken(token string) (map[string]any, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.NewInvalidRequestError("token is not a three-part JWT")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errors.Wrap(err, "decode token payload")
	}
	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, errors.Wrap(err, "parse token payload")
	}
	return claims, nil
}

// TokenExpiration extracts the exp claim as a time.
func TokenExpiration(token string) (time.Time, error) {
	claims, err := DecodeToken(token)
	if err != nil {
		return time.Time{}, err
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, errors.NewInvalidRequestError("token has no exp claim")
	}
	return time.Unix(int64(exp), 0).UTC(), nil
}

// TokenValid reports whether the token parses and has not expired. The
// server is not contacted.
func TokenValid(token string) bool {
	if token == "" {
		return false
	}
	exp, err := TokenExpiration(token)
	if err != nil {
		return false
	}
	return time.Now().Before(exp)
}
