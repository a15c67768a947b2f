package user

import (
	"context"
	"errors"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "correct horse") {
		t.Error("CheckPassword() = false for the right password")
	}
	if CheckPassword(hash, "wrong horse") {
		t.Error("CheckPassword() = true for the wrong password")
	}
}

func TestInMemoryRepository_Create(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	u := &User{Email: "Ayse@Example.com", PasswordHash: "x", Name: "Ayşe"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if u.ID == "" || u.CreatedAt.IsZero() {
		t.Fatal("Create() did not assign ID and CreatedAt")
	}

	dup := &User{Email: "ayse@example.com", PasswordHash: "y", Name: "Other"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email: error = %v, want ErrEmailTaken", err)
	}

	got, err := repo.GetByEmail(ctx, "AYSE@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != u.ID || got.Email != "ayse@example.com" {
		t.Errorf("GetByEmail() = %+v", got)
	}

	got.Name = "mutated"
	again, _ := repo.GetByID(ctx, u.ID)
	if again.Name != "Ayşe" {
		t.Error("repository returned a shared pointer")
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID(missing) error = %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	hash, _ := HashPassword("correct horse")
	u := &User{Email: "ayse@example.com", PasswordHash: hash, Name: "Ayşe"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"ok", "ayse@example.com", "correct horse", nil},
		{"email case ignored", "Ayse@Example.com", "correct horse", nil},
		{"wrong password", "ayse@example.com", "wrong", ErrInvalidCredentials},
		{"unknown email", "nobody@example.com", "correct horse", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Authenticate(ctx, repo, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got.ID != u.ID {
				t.Errorf("Authenticate() returned user %s", got.ID)
			}
		})
	}
}
