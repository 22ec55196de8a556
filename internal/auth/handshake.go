package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskboard/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidKey = errors.New("invalid handshake key")
	ErrExpiredKey = errors.New("handshake key has expired")
)

const minSecretLength = 32

type handshakeClaims struct {
	Telegram string `json:"telegram"`
	jwt.RegisteredClaims
}

// HandshakeService issues and verifies the one-time keys users paste into the bot chat to
// link their account. A key is a base64 wrapped HS256 token whose "telegram" claim holds
// the identity.
type HandshakeService struct {
	signingKey []byte
	ttl        time.Duration
	logger     *zerolog.Logger
	timeFunc   func() time.Time
}

func NewHandshakeService(cfg config.AuthConfig, logger *zerolog.Logger) (*HandshakeService, error) {
	if len(cfg.HandshakeSecret) < minSecretLength {
		return nil, fmt.Errorf("handshake secret must be at least %d characters", minSecretLength)
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &HandshakeService{
		signingKey: []byte(cfg.HandshakeSecret),
		ttl:        time.Duration(cfg.HandshakeTTL) * time.Minute,
		logger:     logger,
		timeFunc:   time.Now,
	}, nil
}

// GenerateKey returns a fresh handshake key for identity.
func (s *HandshakeService) GenerateKey(ctx context.Context, identity string) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("%w: empty identity", ErrInvalidKey)
	}
	now := s.timeFunc()
	claims := handshakeClaims{
		Telegram: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  identity,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.NewString(),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign handshake key: %w", err)
	}
	return base64.StdEncoding.EncodeToString([]byte(signed)), nil
}

// ParseKey validates key and returns the identity it was issued for.
func (s *HandshakeService) ParseKey(key string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(key))
	if err != nil {
		return "", fmt.Errorf("%w: not base64", ErrInvalidKey)
	}

	now := s.timeFunc()
	token, err := jwt.ParseWithClaims(string(raw), &handshakeClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredKey
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	claims, ok := token.Claims.(*handshakeClaims)
	if !ok || !token.Valid || claims.Telegram == "" {
		return "", ErrInvalidKey
	}
	return claims.Telegram, nil
}

// VerifyHandshakeToken reports the identity behind token. Invalid tokens are expected chat
// noise and only logged at debug level.
func (s *HandshakeService) VerifyHandshakeToken(ctx context.Context, token string) (string, bool) {
	identity, err := s.ParseKey(token)
	if err != nil {
		s.logger.Debug().Err(err).Msg("handshake token rejected")
		return "", false
	}
	return identity, true
}
