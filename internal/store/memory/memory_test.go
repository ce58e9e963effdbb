package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/seralabs/tokend/internal/store/core"
)

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateUser(ctx, &core.User{ID: uuid.NewString(), Email: "a@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.CreateUser(ctx, &core.User{ID: uuid.NewString(), Email: "a@example.com"})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestCreateTokenUniquePerUserClient(t *testing.T) {
	s := New()
	ctx := context.Background()

	tok := &core.Token{ID: uuid.NewString(), UserID: "u1", ClientID: "c1", Access: "acc1", Refresh: "ref1", Created: time.Now()}
	if _, err := s.CreateToken(ctx, tok); err != nil {
		t.Fatal(err)
	}
	dup := &core.Token{ID: uuid.NewString(), UserID: "u1", ClientID: "c1", Access: "acc2", Refresh: "ref2", Created: time.Now()}
	if _, err := s.CreateToken(ctx, dup); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestRenewTokenConditionedOnCreated(t *testing.T) {
	s := New()
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok := &core.Token{ID: uuid.NewString(), UserID: "u1", ClientID: "c1", Access: "acc", Refresh: "ref", Created: created}
	if _, err := s.CreateToken(ctx, tok); err != nil {
		t.Fatal(err)
	}

	// First renewal wins.
	now := created.Add(time.Hour)
	if err := s.RenewToken(ctx, tok.ID, created, "acc2", "ref2", now); err != nil {
		t.Fatal(err)
	}

	// A racer that still holds the old Created loses with a conflict.
	err := s.RenewToken(ctx, tok.ID, created, "acc3", "ref3", now)
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	got, err := s.FindTokenByID(ctx, tok.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Access != "acc2" || got.Refresh != "ref2" || !got.Created.Equal(now) {
		t.Fatalf("renewed token = %+v", got)
	}
}

func TestRenewMissingToken(t *testing.T) {
	s := New()
	err := s.RenewToken(context.Background(), "nope", time.Now(), "a", "r", time.Now())
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteToken(t *testing.T) {
	s := New()
	ctx := context.Background()
	tok := &core.Token{ID: uuid.NewString(), UserID: "u1", ClientID: "c1", Access: "acc", Refresh: "ref", Created: time.Now()}
	if _, err := s.CreateToken(ctx, tok); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteToken(ctx, tok.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteToken(ctx, tok.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFindersReturnCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := &core.User{ID: uuid.NewString(), Email: "a@example.com"}
	if _, err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	got, err := s.FindUserByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	got.Email = "tampered"
	again, _ := s.FindUserByEmail(ctx, "a@example.com")
	if again == nil || again.Email != "a@example.com" {
		t.Fatal("store handed out its internal record")
	}
}
