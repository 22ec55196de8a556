package service

import (
	"context"

	"taskboard/internal/domain"
	"taskboard/internal/models"

	"github.com/rs/zerolog"
)

type accountGetter interface {
	GetAccount(ctx context.Context, username string) (*models.Account, error)
}

// AccountVerifier accepts a handshake token only when the identity behind it still has an
// account.
type AccountVerifier struct {
	tokens   domain.HandshakeVerifier
	accounts accountGetter
	logger   *zerolog.Logger
}

func NewAccountVerifier(tokens domain.HandshakeVerifier, accounts accountGetter, logger *zerolog.Logger) *AccountVerifier {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &AccountVerifier{tokens: tokens, accounts: accounts, logger: logger}
}

func (v *AccountVerifier) VerifyHandshakeToken(ctx context.Context, token string) (string, bool) {
	identity, ok := v.tokens.VerifyHandshakeToken(ctx, token)
	if !ok {
		return "", false
	}
	if _, err := v.accounts.GetAccount(ctx, identity); err != nil {
		v.logger.Debug().Err(err).Str("identity", identity).Msg("handshake for unknown account")
		return "", false
	}
	return identity, true
}
