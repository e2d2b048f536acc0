package service

import (
	"context"
	"errors"
	"testing"

	"github.com/capitalize-ai/chat-platform/internal/model"
)

func TestIngest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")
	conv, _, err := env.convSvc.GetOrCreateDirect(ctx, alice, bob)
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}

	msg, err := env.msgSvc.Ingest(ctx, conv.ID, alice, "  hello bob  ")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if msg.Content != "hello bob" {
		t.Errorf("content = %q, want trimmed %q", msg.Content, "hello bob")
	}
	if msg.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", msg.Sequence)
	}
	if msg.SenderName != "alice" {
		t.Errorf("sender name = %q, want alice", msg.SenderName)
	}
	if len(msg.ReadBy) != 1 || msg.ReadBy[0] != alice {
		t.Errorf("read-by = %v, want the sender only", msg.ReadBy)
	}

	// The persist updated the conversation's latest-message pointer.
	got, err := env.convSvc.Get(ctx, alice, conv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LatestMessageID != msg.ID {
		t.Errorf("latest message pointer = %s, want %s", got.LatestMessageID, msg.ID)
	}
}

func TestIngestEmptyContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")
	conv, _, err := env.convSvc.GetOrCreateDirect(ctx, alice, bob)
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}

	for _, content := range []string{"", "   ", "\n\t"} {
		if _, err := env.msgSvc.Ingest(ctx, conv.ID, alice, content); !errors.Is(err, model.ErrInvalidInput) {
			t.Errorf("Ingest(%q): got %v, want ErrInvalidInput", content, err)
		}
	}

	// Nothing was persisted.
	msgs, err := env.messages.List(ctx, conv.ID, 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("rejected messages should leave no trace, found %d", len(msgs))
	}
}

func TestIngestDeniedLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")
	mallory := env.addUser(t, "mallory")
	conv, _, err := env.convSvc.GetOrCreateDirect(ctx, alice, bob)
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}

	if _, err := env.msgSvc.Ingest(ctx, conv.ID, mallory, "let me in"); !errors.Is(err, model.ErrAccessDenied) {
		t.Fatalf("got %v, want ErrAccessDenied", err)
	}

	msgs, err := env.messages.List(ctx, conv.ID, 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("denied send should persist nothing, found %d", len(msgs))
	}
}

func TestIngestAssignsIncreasingSequences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")
	conv, _, err := env.convSvc.GetOrCreateDirect(ctx, alice, bob)
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}

	var last uint64
	for i := 0; i < 5; i++ {
		msg, err := env.msgSvc.Ingest(ctx, conv.ID, alice, "msg")
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		if msg.Sequence <= last {
			t.Errorf("sequence %d not greater than previous %d", msg.Sequence, last)
		}
		last = msg.Sequence
	}
}

func TestListMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")
	mallory := env.addUser(t, "mallory")
	conv, _, err := env.convSvc.GetOrCreateDirect(ctx, alice, bob)
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := env.msgSvc.Ingest(ctx, conv.ID, alice, "msg"); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	resp, err := env.msgSvc.List(ctx, bob, conv.ID, 0, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(resp.Messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(resp.Messages))
	}
	if !resp.HasMore {
		t.Error("a full page should report more available")
	}
	if resp.LastSequence != 3 {
		t.Errorf("last sequence = %d, want 3", resp.LastSequence)
	}
	if resp.Messages[0].SenderName != "alice" {
		t.Errorf("sender name not attached: %+v", resp.Messages[0])
	}

	// Cursor continuation picks up where the first page ended.
	resp, err = env.msgSvc.List(ctx, bob, conv.ID, resp.LastSequence, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Sequence != 4 {
		t.Errorf("continuation page wrong: %+v", resp.Messages)
	}
	if resp.HasMore {
		t.Error("short page should not report more available")
	}

	if _, err := env.msgSvc.List(ctx, mallory, conv.ID, 0, 10); !errors.Is(err, model.ErrAccessDenied) {
		t.Errorf("non-member listing: got %v, want ErrAccessDenied", err)
	}
}
