package report

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid report token")
	ErrExpiredToken = errors.New("report token expired")
)

const linkAudience = "report-download"

// LinkConfig holds report link signing configuration.
type LinkConfig struct {
	Secret  []byte
	TTL     time.Duration // default: 24 hours
	BaseURL string
	Issuer  string
}

// Links issues and validates report download URLs. With no secret, links are unsigned.
type Links struct {
	secret  []byte
	ttl     time.Duration
	baseURL string
	issuer  string
	now     func() time.Time
}

func NewLinks(cfg LinkConfig) *Links {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "adaptive-quiz"
	}
	return &Links{
		secret:  cfg.Secret,
		ttl:     cfg.TTL,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		issuer:  cfg.Issuer,
		now:     time.Now,
	}
}

// URL returns the download URL for a session's report.
func (l *Links) URL(sessionID string) (string, error) {
	path := l.baseURL + "/api/report/download/" + url.PathEscape(sessionID)
	if len(l.secret) == 0 {
		return path, nil
	}

	now := l.now()
	claims := jwt.RegisteredClaims{
		Issuer:    l.issuer,
		Subject:   sessionID,
		Audience:  jwt.ClaimStrings{linkAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(l.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return "", err
	}
	return path + "?token=" + url.QueryEscape(token), nil
}

// Verify checks that token was issued for sessionID and has not expired.
func (l *Links) Verify(tokenString, sessionID string) error {
	if len(l.secret) == 0 {
		return nil
	}
	if tokenString == "" {
		return ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return l.secret, nil
	}, jwt.WithAudience(linkAudience), jwt.WithIssuer(l.issuer), jwt.WithTimeFunc(l.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !token.Valid || claims.Subject != sessionID {
		return ErrInvalidToken
	}
	return nil
}
