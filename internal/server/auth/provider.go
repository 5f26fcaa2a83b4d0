// Package auth validates bearer credentials issued by the external identity
// service and turns them into identity assertions.
package auth

import (
	"context"

	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
)

// IdentityProvider validates a bearer token. Implementations return
// common.ErrorUnauthorized for rejected tokens and
// common.ErrorServiceUnavailable when the authority cannot be reached.
type IdentityProvider interface {
	Validate(ctx context.Context, token string) (*models.Identity, error)
}
