package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/desertthunder/basket/internal/models"
	"github.com/desertthunder/basket/internal/shared"
)

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token and starts using it.
func (c *Client) Login(ctx context.Context, email, password string) (*Token, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password", shared.ErrMissingArgument)
	}

	var tok Token
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", credentials{Email: email, Password: password}, &tok); err != nil {
		if IsAuthError(err) {
			return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", shared.ErrAuthFailed)
	}

	c.SetToken(tok.AccessToken)
	return &tok, nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	if c.Token() == "" {
		return nil, shared.ErrNotAuthenticated
	}

	var u models.User
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Claims is what the client can learn from its own token.
type Claims struct {
	UserID    int64
	Email     string
	ExpiresAt time.Time
}

// Expired reports whether the token has an expiry at or before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ParseClaims reads the user id ("user_id" or a numeric "sub"), email and expiry without verifying the signature.
func ParseClaims(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	var claims Claims
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if email, ok := mc["email"].(string); ok {
		claims.Email = email
	}

	claims.UserID = numericClaim(mc["user_id"])
	if claims.UserID == 0 {
		claims.UserID = numericClaim(mc["sub"])
	}
	if sub, ok := mc["sub"].(string); ok && claims.Email == "" && strings.Contains(sub, "@") {
		claims.Email = sub
	}

	return claims, nil
}

func numericClaim(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		id, _ := strconv.ParseInt(n, 10, 64)
		return id
	}
	return 0
}

// CheckToken returns [shared.ErrNotAuthenticated] for an empty token and [shared.ErrTokenExpired] for an expired one.
func CheckToken(token string, now time.Time) (Claims, error) {
	if token == "" {
		return Claims{}, shared.ErrNotAuthenticated
	}
	claims, err := ParseClaims(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.Expired(now) {
		return claims, shared.ErrTokenExpired
	}
	return claims, nil
}
