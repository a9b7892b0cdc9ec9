// Package services holds the server's application services: the logic
// between the HTTP handlers and the repositories.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spcopeland72-crypto/canny-carrot/internal/common"
	"github.com/spcopeland72-crypto/canny-carrot/internal/cryptox"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/auth"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/config"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/models"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/repositories/accounts"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/repositories/records"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/repositories/refreshtokens"
)

// TokenPair is what a successful login or refresh hands back, together with
// the tenant the tokens are scoped to.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TenantID     string
}

// AccountService owns registration, login and refresh-token rotation.
type AccountService struct {
	accounts                     accounts.Repository
	refreshTokens                refreshtokens.Repository
	records                      records.Repository
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

func NewAccountService(ar accounts.Repository, rr refreshtokens.Repository, recs records.Repository, cfg *config.Config) *AccountService {
	return &AccountService{
		accounts:                     ar,
		refreshTokens:                rr,
		records:                      recs,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// seedProfile is the minimal tenant Profile written at registration. Without
// it a first login would find nothing to download and could never complete.
type seedProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int64     `json:"version"`
}

// Register creates an operator account and the tenant it owns. The tenant id
// is minted here, and the tenant's initial Profile record is seeded into the
// store of record so the first login has something to download.
func (s *AccountService) Register(ctx context.Context, email, password string) (*models.Account, error) {
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, common.ErrLoginAlreadyExists
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		Email:        email,
		PasswordHash: hash,
		TenantID:     uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(seedProfile{
		ID:        account.TenantID,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	})
	if err != nil {
		return nil, err
	}
	if err := s.records.Upsert(ctx, &models.StoredRecord{
		TenantID:   account.TenantID,
		Collection: "profile",
		ID:         account.TenantID,
		Payload:    payload,
		Version:    1,
		UpdatedAt:  now,
	}); err != nil {
		return nil, fmt.Errorf("error seeding tenant profile: %w", err)
	}

	return account, nil
}

// Login verifies the credentials and issues a token pair.
func (s *AccountService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := cryptox.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	return s.issueTokens(ctx, account)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. An expired or unknown token maps to
// ErrRefreshTokenExpired, telling the client to log in again.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	stored, err := s.refreshTokens.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrRefreshTokenExpired
		}
		return nil, err
	}

	if time.Now().After(stored.ExpiresAt) {
		_ = s.refreshTokens.Delete(ctx, refreshToken)
		return nil, common.ErrRefreshTokenExpired
	}

	account, err := s.accounts.GetByID(ctx, stored.AccountID)
	if err != nil {
		return nil, err
	}

	if err := s.refreshTokens.Delete(ctx, refreshToken); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, account)
}

func (s *AccountService) issueTokens(ctx context.Context, account *models.Account) (*TokenPair, error) {
	accessToken, err := auth.GenerateToken(account.ID, account.TenantID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, err
	}

	refreshToken, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, err
	}

	if err := s.refreshTokens.Create(ctx, account.ID, refreshToken, s.refreshTokenValidityDuration); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TenantID:     account.TenantID,
	}, nil
}
