package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spcopeland72-crypto/canny-carrot/internal/common"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/auth"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/config"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/models"
)

type fakeAccountRepo struct {
	byEmail map[string]*models.Account
	nextID  int
}

func (f *fakeAccountRepo) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	f.nextID++
	a.ID = fmt.Sprintf("acc-%d", f.nextID)
	f.byEmail[a.Email] = a
	return a, nil
}

func (f *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	a, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	return a, nil
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	for _, a := range f.byEmail {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, common.ErrNotFound
}

type fakeTokenRepo struct {
	tokens map[string]*models.RefreshToken
}

func (f *fakeTokenRepo) Create(ctx context.Context, accountID, token string, validity time.Duration) error {
	f.tokens[token] = &models.RefreshToken{
		AccountID: accountID,
		Token:     token,
		ExpiresAt: time.Now().Add(validity),
	}
	return nil
}

func (f *fakeTokenRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	t, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	return t, nil
}

func (f *fakeTokenRepo) Delete(ctx context.Context, token string) error {
	delete(f.tokens, token)
	return nil
}

type fakeRecordsRepo struct {
	records map[string]*models.StoredRecord
}

func (f *fakeRecordsRepo) Upsert(ctx context.Context, rec *models.StoredRecord) error {
	f.records[rec.TenantID+"|"+rec.Collection+"|"+rec.ID] = rec
	return nil
}

func (f *fakeRecordsRepo) Get(ctx context.Context, tenantID, collection, id string) (*models.StoredRecord, error) {
	rec, ok := f.records[tenantID+"|"+collection+"|"+id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRecordsRepo) ListIDs(ctx context.Context, tenantID, collection string) ([]string, error) {
	return nil, nil
}

func (f *fakeRecordsRepo) Delete(ctx context.Context, tenantID, collection, id string) error {
	delete(f.records, tenantID+"|"+collection+"|"+id)
	return nil
}

func newService() (*AccountService, *fakeAccountRepo, *fakeTokenRepo, *config.Config) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	ar := &fakeAccountRepo{byEmail: map[string]*models.Account{}}
	rr := &fakeTokenRepo{tokens: map[string]*models.RefreshToken{}}
	recs := &fakeRecordsRepo{records: map[string]*models.StoredRecord{}}
	return NewAccountService(ar, rr, recs, cfg), ar, rr, cfg
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	s, _, _, cfg := newService()

	account, err := s.Register(ctx, "owner@carrot.example", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, account.TenantID)
	assert.NotEqual(t, "hunter22", account.PasswordHash)

	pair, err := s.Login(ctx, "owner@carrot.example", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, account.TenantID, pair.TenantID)

	claims, err := auth.ParseToken(pair.AccessToken, []byte(cfg.SecretKey))
	require.NoError(t, err)
	assert.Equal(t, account.TenantID, claims.TenantID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newService()

	_, err := s.Register(ctx, "owner@carrot.example", "hunter22")
	require.NoError(t, err)

	_, err = s.Register(ctx, "owner@carrot.example", "other")
	assert.ErrorIs(t, err, common.ErrLoginAlreadyExists)
}

func TestRegisterSeedsTenantProfile(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	recs := &fakeRecordsRepo{records: map[string]*models.StoredRecord{}}
	s := NewAccountService(
		&fakeAccountRepo{byEmail: map[string]*models.Account{}},
		&fakeTokenRepo{tokens: map[string]*models.RefreshToken{}},
		recs,
		cfg,
	)

	account, err := s.Register(ctx, "owner@carrot.example", "hunter22")
	require.NoError(t, err)

	rec, err := recs.Get(ctx, account.TenantID, "profile", account.TenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
	assert.False(t, rec.UpdatedAt.IsZero())

	var p struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rec.Payload, &p))
	assert.Equal(t, account.TenantID, p.ID)
	assert.Equal(t, "owner@carrot.example", p.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newService()

	_, err := s.Register(ctx, "owner@carrot.example", "hunter22")
	require.NoError(t, err)

	_, err = s.Login(ctx, "owner@carrot.example", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = s.Login(ctx, "nobody@carrot.example", "hunter22")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestRefreshRotatesToken(t *testing.T) {
	ctx := context.Background()
	s, _, rr, _ := newService()

	_, err := s.Register(ctx, "owner@carrot.example", "hunter22")
	require.NoError(t, err)
	pair, err := s.Login(ctx, "owner@carrot.example", "hunter22")
	require.NoError(t, err)

	next, err := s.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// the old token is gone after rotation
	_, err = s.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
	assert.Contains(t, rr.tokens, next.RefreshToken)
}

func TestRefreshExpiredToken(t *testing.T) {
	ctx := context.Background()
	s, _, rr, _ := newService()

	_, err := s.Register(ctx, "owner@carrot.example", "hunter22")
	require.NoError(t, err)
	pair, err := s.Login(ctx, "owner@carrot.example", "hunter22")
	require.NoError(t, err)

	rr.tokens[pair.RefreshToken].ExpiresAt = time.Now().Add(-time.Minute)

	_, err = s.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
	assert.NotContains(t, rr.tokens, pair.RefreshToken)
}
