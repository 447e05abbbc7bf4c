package authpw

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bandstand/api/internal/store"
)

type fakeUserStore struct {
	users        map[string]store.User
	resets       map[string]int64
	createdUsers []store.User
	passwords    map[int64]string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:     make(map[string]store.User),
		resets:    make(map[string]int64),
		passwords: make(map[int64]string),
	}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	user, ok := f.users[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id int64) (store.User, error) {
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) (int64, error) {
	user.ID = int64(len(f.users) + 1)
	f.users[user.Email] = user
	f.createdUsers = append(f.createdUsers, user)
	return user.ID, nil
}

func (f *fakeUserStore) UpdateUserVerificationToken(context.Context, int64, string, time.Time) error {
	return nil
}

func (f *fakeUserStore) VerifyUserEmail(_ context.Context, token string) error {
	for email, user := range f.users {
		if user.VerificationToken == token {
			user.IsEmailVerified = true
			f.users[email] = user
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeUserStore) UpdateUserPassword(_ context.Context, userID int64, hash string) error {
	f.passwords[userID] = hash
	return nil
}

func (f *fakeUserStore) CreatePasswordReset(_ context.Context, userID int64, token string, _ time.Time) error {
	f.resets[token] = userID
	return nil
}

func (f *fakeUserStore) GetPasswordReset(_ context.Context, token string) (int64, error) {
	userID, ok := f.resets[token]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return userID, nil
}

func (f *fakeUserStore) MarkPasswordResetUsed(_ context.Context, token string) error {
	delete(f.resets, token)
	return nil
}

func TestSignUpAndSignIn(t *testing.T) {
	f := newFakeUserStore()
	svc := NewService(f)
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, SignUpRequest{Email: "ada@example.com", Password: "correcthorse", Name: "ada"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if !resp.RequiresEmailVerify || resp.VerificationToken == "" {
		t.Fatalf("expected verification required, got %+v", resp)
	}

	// Unverified sign-in is flagged, not rejected.
	signIn, err := svc.SignIn(ctx, SignInRequest{Email: "ada@example.com", Password: "correcthorse"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if !signIn.RequiresVerify {
		t.Fatal("expected RequiresVerify before email verification")
	}

	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	signIn, err = svc.SignIn(ctx, SignInRequest{Email: "ada@example.com", Password: "correcthorse"})
	if err != nil {
		t.Fatalf("SignIn after verify: %v", err)
	}
	if signIn.RequiresVerify {
		t.Fatal("verification should be complete")
	}

	if _, err := svc.SignIn(ctx, SignInRequest{Email: "ada@example.com", Password: "wrong"}); err == nil {
		t.Fatal("expected error for wrong password")
	}
}

func TestSignUpRejectsWeakInput(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.c", Password: "short", Name: "a"}); err == nil {
		t.Fatal("expected error for short password")
	}
	if _, err := svc.SignUp(ctx, SignUpRequest{Password: "correcthorse", Name: "a"}); err == nil {
		t.Fatal("expected error for missing email")
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	f := newFakeUserStore()
	svc := NewService(f)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "ada@example.com", Password: "correcthorse", Name: "ada"}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "ada@example.com", Password: "correcthorse", Name: "ada2"}); err == nil {
		t.Fatal("expected error for duplicate email")
	}
}

func TestPasswordReset(t *testing.T) {
	f := newFakeUserStore()
	svc := NewService(f)
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, SignUpRequest{Email: "ada@example.com", Password: "correcthorse", Name: "ada"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	token, err := svc.RequestPasswordReset(ctx, "ada@example.com")
	if err != nil || token == "" {
		t.Fatalf("RequestPasswordReset: %q %v", token, err)
	}

	// Unknown email yields no token and no error.
	ghost, err := svc.RequestPasswordReset(ctx, "ghost@example.com")
	if err != nil || ghost != "" {
		t.Fatalf("unknown email should be silent: %q %v", ghost, err)
	}

	if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "battery-staple"}); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	hash, ok := f.passwords[resp.UserID]
	if !ok {
		t.Fatal("password was not updated")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("battery-staple")); err != nil {
		t.Fatalf("stored hash does not match new password: %v", err)
	}

	if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "battery-staple"}); err == nil {
		t.Fatal("expected error for reused token")
	}
}
