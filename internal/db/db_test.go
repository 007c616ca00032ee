package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"surfpass/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

func strPtr(s string) *string { return &s }

func createAccount(t *testing.T, repo *AccountRepository, p CreateAccountParams) *models.Account {
	t.Helper()

	if p.Role == "" {
		p.Role = models.RoleUser
	}
	if p.Status == "" {
		p.Status = models.StatusApproved
	}
	if p.FullName == "" {
		p.FullName = p.ID
	}
	if p.InstagramHandle == "" {
		p.InstagramHandle = "ig_" + p.ID
	}

	a, err := repo.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create(%s) error = %v", p.ID, err)
	}
	return a
}

func TestAccountCreateReportsConflictingColumn(t *testing.T) {
	database := openTestDB(t)
	repo := NewAccountRepository(database)

	createAccount(t, repo, CreateAccountParams{ID: "SP1", Phone: strPtr("+628111"), Email: strPtr("a@example.com"), InstagramHandle: "abc"})

	tests := []struct {
		name   string
		params CreateAccountParams
		want   string
	}{
		{"phone", CreateAccountParams{ID: "SP2", Phone: strPtr("+628111"), InstagramHandle: "x1"}, "phone"},
		{"email", CreateAccountParams{ID: "SP3", Email: strPtr("a@example.com"), InstagramHandle: "x2"}, "email"},
		{"instagram", CreateAccountParams{ID: "SP4", InstagramHandle: "abc"}, "instagram_handle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.params.Role = models.RoleUser
			tt.params.Status = models.StatusApproved
			tt.params.FullName = "dup"

			_, err := repo.Create(context.Background(), tt.params)
			var violation *UniqueViolation
			if !errors.As(err, &violation) {
				t.Fatalf("Create() error = %v, want *UniqueViolation", err)
			}
			if violation.Column != tt.want {
				t.Fatalf("violation.Column = %q, want %q", violation.Column, tt.want)
			}
			if !errors.Is(err, ErrDuplicate) {
				t.Fatalf("errors.Is(err, ErrDuplicate) = false")
			}
		})
	}
}

func TestAccountUniquenessIsPerRole(t *testing.T) {
	database := openTestDB(t)
	repo := NewAccountRepository(database)

	createAccount(t, repo, CreateAccountParams{ID: "SP1", Role: models.RoleUser, Phone: strPtr("+628111"), InstagramHandle: "abc"})
	createAccount(t, repo, CreateAccountParams{ID: "SP2", Role: models.RoleStaff, Phone: strPtr("+628111"), InstagramHandle: "abc", Status: models.StatusPending})

	field, err := repo.FindConflict(context.Background(), models.RoleAdmin, "+628111", "", "abc")
	if err != nil {
		t.Fatalf("FindConflict() error = %v", err)
	}
	if field != "" {
		t.Fatalf("FindConflict() = %q, want no conflict for a different role", field)
	}
}

func TestAccountDecideOnlyFromPending(t *testing.T) {
	database := openTestDB(t)
	repo := NewAccountRepository(database)
	ctx := context.Background()

	createAccount(t, repo, CreateAccountParams{ID: "SP1", Role: models.RoleAdmin, Status: models.StatusApproved, IsSuperAdmin: true})
	createAccount(t, repo, CreateAccountParams{ID: "SP2", Role: models.RoleStaff, Status: models.StatusPending})

	if err := repo.Decide(ctx, "SP2", models.StatusApproved, "SP1"); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if err := repo.Decide(ctx, "SP2", models.StatusDenied, "SP1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Decide() error = %v, want ErrNotFound", err)
	}

	got, err := repo.FindByID(ctx, "SP2")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.RegistrationStatus != models.StatusApproved {
		t.Fatalf("status = %s, want APPROVED", got.RegistrationStatus)
	}
	if got.DecidedBy == nil || *got.DecidedBy != "SP1" {
		t.Fatalf("DecidedBy = %v, want SP1", got.DecidedBy)
	}
}

func TestAccountIsAncestor(t *testing.T) {
	database := openTestDB(t)
	repo := NewAccountRepository(database)
	ctx := context.Background()

	createAccount(t, repo, CreateAccountParams{ID: "SP1"})
	createAccount(t, repo, CreateAccountParams{ID: "SP2", ReferredBy: strPtr("SP1")})
	createAccount(t, repo, CreateAccountParams{ID: "SP3", ReferredBy: strPtr("SP2")})

	tests := []struct {
		candidate, of string
		want          bool
	}{
		{"SP1", "SP3", true},
		{"SP2", "SP3", true},
		{"SP3", "SP1", false},
		{"SP3", "SP3", false},
	}
	for _, tt := range tests {
		got, err := repo.IsAncestor(ctx, tt.candidate, tt.of)
		if err != nil {
			t.Fatalf("IsAncestor() error = %v", err)
		}
		if got != tt.want {
			t.Fatalf("IsAncestor(%s, %s) = %v, want %v", tt.candidate, tt.of, got, tt.want)
		}
	}
}

func TestOTPChallengeReserveAndConsume(t *testing.T) {
	database := openTestDB(t)
	repo := NewOTPChallengeRepository(database)
	ctx := context.Background()
	now := time.Now().UTC()

	c := &models.OTPChallenge{
		ID: "otp_1", Phone: "+628123456789", Purpose: models.PurposeLogin, CodeHash: "h",
		CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute), AttemptsRemaining: 2,
		ResendAvailableAt: now.Add(time.Minute), SendCount: 1, SendWindowStartedAt: now,
	}
	if err := repo.Save(ctx, c); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, _, err := repo.ReserveAttempt(ctx, "otp_1", c.ExpiresAt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReserveAttempt() at expiry error = %v, want ErrNotFound", err)
	}

	for want := 1; want >= 0; want-- {
		got, hash, err := repo.ReserveAttempt(ctx, "otp_1", now)
		if err != nil {
			t.Fatalf("ReserveAttempt() error = %v", err)
		}
		if got != want || hash != "h" {
			t.Fatalf("ReserveAttempt() = %d, %q; want %d, %q", got, hash, want, "h")
		}
	}
	if _, _, err := repo.ReserveAttempt(ctx, "otp_1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReserveAttempt() at zero error = %v, want ErrNotFound", err)
	}

	if ok, err := repo.ConsumeIfActive(ctx, "otp_1", c.ExpiresAt); err != nil || ok {
		t.Fatalf("ConsumeIfActive() at expiry = %v, %v; want false, nil", ok, err)
	}
	ok, err := repo.ConsumeIfActive(ctx, "otp_1", now)
	if err != nil || !ok {
		t.Fatalf("ConsumeIfActive() = %v, %v; want true, nil", ok, err)
	}
	ok, err = repo.ConsumeIfActive(ctx, "otp_1", now)
	if err != nil || ok {
		t.Fatalf("second ConsumeIfActive() = %v, %v; want false, nil", ok, err)
	}

	c.ID = "otp_2"
	c.AttemptsRemaining = 5
	if err := repo.Save(ctx, c); err != nil {
		t.Fatalf("Save() replacement error = %v", err)
	}
	got, err := repo.Find(ctx, c.Phone, c.Purpose)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got.ID != "otp_2" || got.ConsumedAt != nil || got.AttemptsRemaining != 5 {
		t.Fatalf("Find() = %+v, want fresh otp_2 row", got)
	}
}

func TestCheckInUpsertIsIdempotent(t *testing.T) {
	database := openTestDB(t)
	accounts := NewAccountRepository(database)
	repo := NewCheckInRepository(database)
	ctx := context.Background()

	createAccount(t, accounts, CreateAccountParams{ID: "SP1"})

	first, created, err := repo.Upsert(ctx, "SP1", "SP9", time.Now())
	if err != nil || !created {
		t.Fatalf("Upsert() = %v, %v; want created", created, err)
	}
	second, created, err := repo.Upsert(ctx, "SP1", "SP8", time.Now().Add(time.Second))
	if err != nil || created {
		t.Fatalf("second Upsert() = %v, %v; want existing", created, err)
	}
	if !first.CheckedInAt.Equal(second.CheckedInAt) || second.CheckedInBy != "SP9" {
		t.Fatalf("second Upsert() = %+v, want original %+v", second, first)
	}

	count, err := repo.CountActiveUsers(ctx)
	if err != nil {
		t.Fatalf("CountActiveUsers() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("CountActiveUsers() = %d, want 1", count)
	}

	if err := accounts.SetActive(ctx, "SP1", false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	count, err = repo.CountActiveUsers(ctx)
	if err != nil {
		t.Fatalf("CountActiveUsers() error = %v", err)
	}
	if count != 0 {
		t.Fatalf("CountActiveUsers() after deactivation = %d, want 0", count)
	}
}

func TestExpenseTotalsOrdering(t *testing.T) {
	database := openTestDB(t)
	accounts := NewAccountRepository(database)
	repo := NewExpenseRepository(database)
	ctx := context.Background()

	for _, id := range []string{"SPA", "SPB", "SPC", "SPS"} {
		createAccount(t, accounts, CreateAccountParams{ID: id})
	}

	for _, e := range []struct {
		account string
		amount  int64
	}{{"SPC", 200}, {"SPA", 100}, {"SPB", 300}, {"SPA", 100}} {
		if _, err := repo.Create(ctx, CreateExpenseParams{AccountID: e.account, Amount: e.amount, Description: "x", Category: "food", RecordedBy: "SPS"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	totals, err := repo.Totals(ctx, 0)
	if err != nil {
		t.Fatalf("Totals() error = %v", err)
	}

	want := []string{"SPB", "SPC", "SPA"}
	if len(totals) != len(want) {
		t.Fatalf("len(Totals()) = %d, want %d", len(totals), len(want))
	}
	for i, id := range want {
		if totals[i].AccountID != id {
			t.Fatalf("Totals()[%d] = %s, want %s (tie on 200 goes to the earlier first expense)", i, totals[i].AccountID, id)
		}
	}
}
