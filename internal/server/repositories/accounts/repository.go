// Package accounts declares the server-side repository contract for
// operator accounts.
package accounts

import (
	"context"

	"github.com/spcopeland72-crypto/canny-carrot/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
}
