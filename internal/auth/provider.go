package auth

import (
	"context"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
)

type Provider interface {
	ValidateTokenLocal(ctx context.Context, token string) (*internal.User, error)
	ValidateTokenRemote(ctx context.Context, token string) (*internal.User, error)
}
