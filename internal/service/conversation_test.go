package service

import (
	"context"
	"errors"
	"testing"

	"github.com/capitalize-ai/chat-platform/internal/model"
)

func TestGetOrCreateDirect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")

	conv, created, err := env.convSvc.GetOrCreateDirect(ctx, alice, bob)
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}
	if !created {
		t.Error("first call should create")
	}
	if conv.Kind != model.KindDirect {
		t.Errorf("kind = %q, want direct", conv.Kind)
	}
	if !conv.IsMember(alice) || !conv.IsMember(bob) {
		t.Error("both users should be members")
	}
	if len(conv.Members) != 2 {
		t.Errorf("got %d populated members, want 2", len(conv.Members))
	}

	// Bob initiating from the other side resolves to the same conversation.
	again, created, err := env.convSvc.GetOrCreateDirect(ctx, bob, alice)
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}
	if created {
		t.Error("second call should not create")
	}
	if again.ID != conv.ID {
		t.Errorf("got conversation %s, want %s", again.ID, conv.ID)
	}
}

func TestGetOrCreateDirectValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.addUser(t, "alice")

	if _, _, err := env.convSvc.GetOrCreateDirect(ctx, alice, ""); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("empty user: got %v, want ErrInvalidInput", err)
	}
	if _, _, err := env.convSvc.GetOrCreateDirect(ctx, alice, alice); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("self conversation: got %v, want ErrInvalidInput", err)
	}
	if _, _, err := env.convSvc.GetOrCreateDirect(ctx, alice, "no-such-user"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown user: got %v, want ErrNotFound", err)
	}
}

func TestCreateGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")
	carol := env.addUser(t, "carol")

	conv, err := env.convSvc.CreateGroup(ctx, alice, &model.CreateGroupConversationRequest{
		Name:      "team",
		MemberIDs: []string{bob, carol, bob},
	})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if conv.Kind != model.KindGroup {
		t.Errorf("kind = %q, want group", conv.Kind)
	}
	if conv.AdminID != alice {
		t.Errorf("admin = %s, want creator %s", conv.AdminID, alice)
	}
	if len(conv.MemberIDs) != 3 {
		t.Errorf("got %d members, want 3 (duplicates removed, creator included)", len(conv.MemberIDs))
	}
}

func TestCreateGroupValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")

	if _, err := env.convSvc.CreateGroup(ctx, alice, &model.CreateGroupConversationRequest{
		MemberIDs: []string{bob},
	}); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("missing name: got %v, want ErrInvalidInput", err)
	}

	if _, err := env.convSvc.CreateGroup(ctx, alice, &model.CreateGroupConversationRequest{
		Name:      "pair",
		MemberIDs: []string{bob},
	}); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("too few members: got %v, want ErrInvalidInput", err)
	}

	if _, err := env.convSvc.CreateGroup(ctx, alice, &model.CreateGroupConversationRequest{
		Name:      "ghosts",
		MemberIDs: []string{bob, "no-such-user"},
	}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown member: got %v, want ErrNotFound", err)
	}
}

func TestAuthorize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")
	mallory := env.addUser(t, "mallory")

	conv, _, err := env.convSvc.GetOrCreateDirect(ctx, alice, bob)
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}

	if err := env.convSvc.Authorize(ctx, alice, conv.ID); err != nil {
		t.Errorf("member denied: %v", err)
	}
	if err := env.convSvc.Authorize(ctx, mallory, conv.ID); !errors.Is(err, model.ErrAccessDenied) {
		t.Errorf("non-member: got %v, want ErrAccessDenied", err)
	}
	if err := env.convSvc.Authorize(ctx, alice, "no-such-conversation"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown conversation: got %v, want ErrNotFound", err)
	}
}

func TestGetDeniesNonMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")
	mallory := env.addUser(t, "mallory")

	conv, _, err := env.convSvc.GetOrCreateDirect(ctx, alice, bob)
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}

	if _, err := env.convSvc.Get(ctx, mallory, conv.ID); !errors.Is(err, model.ErrAccessDenied) {
		t.Errorf("got %v, want ErrAccessDenied", err)
	}
}

func TestListOrdersByActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")
	carol := env.addUser(t, "carol")

	first, _, err := env.convSvc.GetOrCreateDirect(ctx, alice, bob)
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}
	second, _, err := env.convSvc.GetOrCreateDirect(ctx, alice, carol)
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}

	// A message in the first conversation bumps it to the top.
	if _, err := env.msgSvc.Ingest(ctx, first.ID, alice, "hello"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	resp, err := env.convSvc.List(ctx, alice)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("got %d conversations, want 2", resp.Total)
	}
	if resp.Conversations[0].ID != first.ID {
		t.Errorf("most recently active should sort first, got %s", resp.Conversations[0].ID)
	}
	if resp.Conversations[1].ID != second.ID {
		t.Errorf("second slot = %s, want %s", resp.Conversations[1].ID, second.ID)
	}
	if resp.Conversations[0].LatestMessage == nil {
		t.Error("latest message should be populated")
	}
}
