package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/capitalize-ai/chat-platform/internal/auth"
	"github.com/capitalize-ai/chat-platform/internal/model"
	"github.com/capitalize-ai/chat-platform/internal/store/memory"
	"github.com/capitalize-ai/chat-platform/pkg/logger"
)

// testEnv wires the services against in-memory stores.
type testEnv struct {
	users         *memory.UserStore
	userSvc       *UserService
	convSvc       *ConversationService
	msgSvc        *MessageService
	conversations *memory.ConversationStore
	messages      *memory.MessageStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := &logger.Logger{Logger: zap.NewNop()}
	users := memory.NewUserStore()
	conversations := memory.NewConversationStore()
	messages := memory.NewMessageStore()

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	convSvc := NewConversationService(conversations, users, messages, log)

	return &testEnv{
		users:         users,
		userSvc:       NewUserService(users, issuer, log),
		convSvc:       convSvc,
		msgSvc:        NewMessageService(messages, convSvc, users, log),
		conversations: conversations,
		messages:      messages,
	}
}

// addUser seeds a user directly in the store and returns its ID.
func (e *testEnv) addUser(t *testing.T, name string) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	user := &model.User{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return user.ID
}
