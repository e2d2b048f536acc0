package ws

import (
	"context"
	"errors"
	"fmt"

	"github.com/capitalize-ai/chat-platform/internal/auth"
	"github.com/capitalize-ai/chat-platform/internal/model"
	"github.com/capitalize-ai/chat-platform/internal/store"
)

// Authenticator gates connection establishment. It verifies the presented
// credential against the identity service and confirms the identity still
// exists in the store before any room or message capability is exposed.
type Authenticator struct {
	verifier *auth.Verifier
	users    store.UserStore
}

// NewAuthenticator creates a connection authenticator.
func NewAuthenticator(verifier *auth.Verifier, users store.UserStore) *Authenticator {
	return &Authenticator{verifier: verifier, users: users}
}

// Authenticate resolves a credential to a user. Expiry is enforced here,
// once, at connection time; it is not re-checked per message.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (*model.User, error) {
	if credential == "" {
		return nil, fmt.Errorf("missing credential: %w", model.ErrUnauthenticated)
	}

	userID, err := a.verifier.Verify(credential)
	if err != nil {
		return nil, err
	}

	user, err := a.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("unknown identity %s: %w", userID, model.ErrUnauthenticated)
		}
		return nil, err
	}
	return user, nil
}
