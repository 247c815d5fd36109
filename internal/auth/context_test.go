package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:       1,
		HouseholdID:  2,
		IsAdmin:      true,
		SessionToken: "tok",
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != 1 {
		t.Errorf("UserID = %d, want 1", got.UserID)
	}
	if got.HouseholdID != 2 {
		t.Errorf("HouseholdID = %d, want 2", got.HouseholdID)
	}
	if !got.IsAdmin {
		t.Error("IsAdmin = false, want true")
	}
	if got.SessionToken != "tok" {
		t.Errorf("SessionToken = %q, want %q", got.SessionToken, "tok")
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestAccessorsMissing(t *testing.T) {
	ctx := context.Background()
	if UserID(ctx) != 0 {
		t.Error("expected UserID 0 for missing context")
	}
	if HouseholdID(ctx) != 0 {
		t.Error("expected HouseholdID 0 for missing context")
	}
	if IsAdmin(ctx) {
		t.Error("expected IsAdmin false for missing context")
	}
}

func TestAccessors(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: 7, HouseholdID: 42})
	if UserID(ctx) != 7 {
		t.Errorf("UserID = %d, want 7", UserID(ctx))
	}
	if HouseholdID(ctx) != 42 {
		t.Errorf("HouseholdID = %d, want 42", HouseholdID(ctx))
	}
	if IsAdmin(ctx) {
		t.Error("IsAdmin = true, want false")
	}
}
