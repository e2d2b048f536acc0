package natskv

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/chat-platform/internal/model"
)

// UserStore is a JetStream KV-backed store.UserStore.
type UserStore struct {
	users  jetstream.KeyValue
	emails jetstream.KeyValue
}

// storedUser is the persisted form of a user. The API model hides the
// password hash from serialization; the store record must keep it, so the
// two shapes are kept separate.
type storedUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Avatar       string    `json:"avatar,omitempty"`
	IsOnline     bool      `json:"is_online"`
	LastSeen     time.Time `json:"last_seen"`
	CreatedAt    time.Time `json:"created_at"`
}

func encodeUser(user *model.User) ([]byte, error) {
	data, err := json.Marshal(storedUser{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Avatar:       user.Avatar,
		IsOnline:     user.IsOnline,
		LastSeen:     user.LastSeen,
		CreatedAt:    user.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user: %w", err)
	}
	return data, nil
}

func decodeUser(data []byte) (*model.User, error) {
	var stored storedUser
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &model.User{
		ID:           stored.ID,
		Name:         stored.Name,
		Email:        stored.Email,
		PasswordHash: stored.PasswordHash,
		Avatar:       stored.Avatar,
		IsOnline:     stored.IsOnline,
		LastSeen:     stored.LastSeen,
		CreatedAt:    stored.CreatedAt,
	}, nil
}

// emailKey encodes an email address into the KV key alphabet.
func emailKey(email string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(email))
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	data, err := encodeUser(user)
	if err != nil {
		return err
	}

	// Claim the email first; the atomic create enforces uniqueness.
	if _, err := s.emails.Create(ctx, emailKey(user.Email), []byte(user.ID)); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return fmt.Errorf("user %s: %w", user.Email, model.ErrAlreadyExists)
		}
		return storeErr("create user email index", err)
	}

	if _, err := s.users.Put(ctx, user.ID, data); err != nil {
		return storeErr("create user", err)
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, id string) (*model.User, error) {
	entry, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return decodeUser(entry.Value())
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	entry, err := s.emails.Get(ctx, emailKey(email))
	if err != nil {
		return nil, storeErr("get user by email", err)
	}
	return s.Get(ctx, string(entry.Value()))
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	lister, err := s.users.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, storeErr("list users", err)
	}

	var users []model.User
	for key := range lister.Keys() {
		user, err := s.Get(ctx, key)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return nil, err
		}
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (s *UserStore) SetPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	user.IsOnline = online
	user.LastSeen = lastSeen

	data, err := encodeUser(user)
	if err != nil {
		return err
	}
	if _, err := s.users.Put(ctx, id, data); err != nil {
		return storeErr("set presence", err)
	}
	return nil
}
