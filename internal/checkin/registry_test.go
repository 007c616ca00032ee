package checkin

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"surfpass/internal/db"
	"surfpass/internal/models"
)

type fixture struct {
	registry *Registry
	accounts *db.AccountRepository
	staff    *models.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	f := &fixture{accounts: db.NewAccountRepository(database)}
	f.registry = NewRegistry(db.NewCheckInRepository(database), f.accounts, nil)
	f.staff = f.create(t, "SP900", models.RoleStaff)
	return f
}

func (f *fixture) create(t *testing.T, id string, role models.Role) *models.Account {
	t.Helper()
	a, err := f.accounts.Create(context.Background(), db.CreateAccountParams{
		ID:              id,
		Role:            role,
		InstagramHandle: "ig_" + id,
		FullName:        "Name " + id,
		Status:          models.StatusApproved,
	})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", id, err)
	}
	return a
}

func TestCheckInIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, "SP1", models.RoleUser)
	f.create(t, "SP2", models.RoleUser)

	first, created, err := f.registry.CheckIn(ctx, f.staff, "SP1")
	if err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}
	if !created {
		t.Fatal("first CheckIn() created = false")
	}

	f.registry.now = func() time.Time { return time.Now().Add(time.Hour) }
	second, created, err := f.registry.CheckIn(ctx, f.staff, "SP1")
	if err != nil {
		t.Fatalf("second CheckIn() error = %v", err)
	}
	if created {
		t.Fatal("second CheckIn() created = true")
	}
	if !second.CheckedInAt.Equal(first.CheckedInAt) {
		t.Fatalf("CheckedInAt changed: %v != %v", second.CheckedInAt, first.CheckedInAt)
	}

	stats, err := f.registry.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalRSVP != 2 || stats.TotalCheckedIn != 1 || stats.Rate != 0.5 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestStatsIgnoreDeactivatedAttendees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, "SP1", models.RoleUser)
	f.create(t, "SP2", models.RoleUser)

	for _, id := range []string{"SP1", "SP2"} {
		if _, _, err := f.registry.CheckIn(ctx, f.staff, id); err != nil {
			t.Fatalf("CheckIn(%s) error = %v", id, err)
		}
	}
	if err := f.accounts.SetActive(ctx, "SP2", false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	stats, err := f.registry.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalRSVP != 1 || stats.TotalCheckedIn != 1 || stats.Rate != 1 {
		t.Fatalf("stats = %+v, want 1 of 1 checked in", stats)
	}
}

func TestConcurrentScansCreateOneRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, "SP1", models.RoleUser)

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := f.registry.CheckIn(ctx, f.staff, "SP1")
			if err != nil {
				t.Errorf("CheckIn() error = %v", err)
				return
			}
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if createdCount != 1 {
		t.Fatalf("created = %d, want 1", createdCount)
	}
}

func TestCheckInUnknownAccount(t *testing.T) {
	f := newFixture(t)

	if _, _, err := f.registry.CheckIn(context.Background(), f.staff, "SP404"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("CheckIn() error = %v, want ErrAccountNotFound", err)
	}
}

func TestCheckInRequiresStaff(t *testing.T) {
	f := newFixture(t)
	user := f.create(t, "SP1", models.RoleUser)

	if _, _, err := f.registry.CheckIn(context.Background(), user, "SP1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("CheckIn() error = %v, want ErrForbidden", err)
	}
}

func TestExtractAccountID(t *testing.T) {
	tests := []struct {
		payload string
		want    string
		ok      bool
	}{
		{payload: "SP1234567890", want: "SP1234567890", ok: true},
		{payload: "https://surf.example/ticket?id=SP42&x=1", want: "SP42", ok: true},
		{payload: "sp77", want: "SP77", ok: true},
		{payload: "hello world", ok: false},
		{payload: "SP", ok: false},
	}

	for _, tt := range tests {
		got, ok := ExtractAccountID(tt.payload)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ExtractAccountID(%q) = (%q, %v), want (%q, %v)", tt.payload, got, ok, tt.want, tt.ok)
		}
	}
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, "SP1", models.RoleUser)

	result, err := f.registry.Scan(ctx, f.staff, "garbage")
	if err != nil || result.Found {
		t.Fatalf("Scan(garbage) = %+v, %v", result, err)
	}

	result, err = f.registry.Scan(ctx, f.staff, "ticket:SP404")
	if err != nil || result.Found || result.AccountID != "SP404" {
		t.Fatalf("Scan(unknown) = %+v, %v", result, err)
	}

	result, err = f.registry.Scan(ctx, f.staff, "ticket:SP1")
	if err != nil || !result.Found || result.CheckIn != nil {
		t.Fatalf("Scan(SP1) = %+v, %v", result, err)
	}

	if _, _, err := f.registry.CheckIn(ctx, f.staff, "SP1"); err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}
	result, err = f.registry.Scan(ctx, f.staff, "SP1")
	if err != nil || result.CheckIn == nil {
		t.Fatalf("Scan(after check-in) = %+v, %v", result, err)
	}
}
