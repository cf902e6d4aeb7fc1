package gorbac

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "ada@example.com", "correct horse")
	ctx := context.Background()

	if err := env.eng.ForgotPassword(ctx, "ada@example.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	token := tokenFromBody(t, env.mail.last(t).Body)

	auth, err := env.eng.ResetPassword(ctx, token, "brand new pass", "brand new pass")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := env.eng.Authenticate(ctx, auth.Tokens.AccessToken); err != nil {
		t.Fatalf("authenticate after reset: %v", err)
	}

	if _, err := env.eng.Login(ctx, "ada@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := env.eng.Login(ctx, "ada@example.com", "brand new pass"); err != nil {
		t.Fatalf("new password: %v", err)
	}
}

func TestResetTokenSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "ada@example.com", "correct horse")
	ctx := context.Background()

	if err := env.eng.ForgotPassword(ctx, "ada@example.com"); err != nil {
		t.Fatal(err)
	}
	token := tokenFromBody(t, env.mail.last(t).Body)

	if _, err := env.eng.ResetPassword(ctx, token, "brand new pass", "brand new pass"); err != nil {
		t.Fatalf("first use: %v", err)
	}
	if _, err := env.eng.ResetPassword(ctx, token, "yet another pw", "yet another pw"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("second use: err = %v, want ErrResetTokenInvalid", err)
	}
}

func TestResetTokenExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "ada@example.com", "correct horse")
	ctx := context.Background()

	if err := env.eng.ForgotPassword(ctx, "ada@example.com"); err != nil {
		t.Fatal(err)
	}
	token := tokenFromBody(t, env.mail.last(t).Body)

	env.clock.Advance(11 * time.Minute)
	if _, err := env.eng.ResetPassword(ctx, token, "brand new pass", "brand new pass"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("err = %v, want ErrResetTokenInvalid", err)
	}
	// Password unchanged.
	if _, err := env.eng.Login(ctx, "ada@example.com", "correct horse"); err != nil {
		t.Fatalf("original password should still work: %v", err)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	err := env.eng.ForgotPassword(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestForgotPasswordMailFailureRollsTokenBack(t *testing.T) {
	env := newTestEnv(t)
	auth := env.signup(t, "ada@example.com", "correct horse")
	ctx := context.Background()

	wantErr := errors.New("smtp down")
	env.mail.fail(wantErr)
	if err := env.eng.ForgotPassword(ctx, "ada@example.com"); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want mailer failure", err)
	}
	if rec := env.store.raw(auth.User.ID); rec.ResetPasswordDigest != "" {
		t.Fatal("reset digest should have been rolled back")
	}
}

func TestResetPasswordValidatesPolicy(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "ada@example.com", "correct horse")
	ctx := context.Background()

	if _, err := env.eng.ResetPassword(ctx, "whatever", "short", "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("err = %v, want ErrPasswordPolicy", err)
	}
	if _, err := env.eng.ResetPassword(ctx, "whatever", "long enough pw", "different pw aa"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("err = %v, want ErrPasswordMismatch", err)
	}
}

func TestUpdatePassword(t *testing.T) {
	env := newTestEnv(t)
	auth := env.signup(t, "ada@example.com", "correct horse")
	ctx := context.Background()

	if _, err := env.eng.UpdatePassword(ctx, auth.User.ID, "wrong current", "brand new pass", "brand new pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current: err = %v, want ErrInvalidCredentials", err)
	}

	next, err := env.eng.UpdatePassword(ctx, auth.User.ID, "correct horse", "brand new pass", "brand new pass")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := env.eng.Authenticate(ctx, next.Tokens.AccessToken); err != nil {
		t.Fatalf("fresh token: %v", err)
	}
	// Sessions opened before the change are gone.
	if _, err := env.eng.Authenticate(ctx, auth.Tokens.AccessToken); err == nil {
		t.Fatal("pre-change access token should be rejected")
	}
	if _, err := env.eng.Refresh(ctx, auth.Tokens.RefreshToken); err == nil {
		t.Fatal("pre-change refresh token should be rejected")
	}
	if _, err := env.eng.Login(ctx, "ada@example.com", "brand new pass"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestPasswordChangeInvalidatesEarlierTokensByIssueTime(t *testing.T) {
	env := newTestEnv(t)
	auth := env.signup(t, "ada@example.com", "correct horse")
	ctx := context.Background()

	env.clock.Advance(time.Minute)
	if _, err := env.eng.UpdatePassword(ctx, auth.User.ID, "correct horse", "brand new pass", "brand new pass"); err != nil {
		t.Fatal(err)
	}

	// Rebuild the revoked session so only the issue-time check can
	// reject the old token.
	claims, err := env.eng.tokens.ParseAccess(auth.Tokens.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.eng.sessions.Save(ctx, claims.SessionID, auth.User.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.eng.Authenticate(ctx, auth.Tokens.AccessToken); !errors.Is(err, ErrPasswordRotated) {
		t.Fatalf("err = %v, want ErrPasswordRotated", err)
	}
}
