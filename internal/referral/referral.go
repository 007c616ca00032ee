package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"surfpass/internal/db"
	"surfpass/internal/models"
)

// ErrInvalidReferral covers every rejected code: unknown, self, cyclic, or an
// account that already has a referrer.
var ErrInvalidReferral = errors.New("invalid referral code")

type Earnings struct {
	Rate         string `json:"rate"`
	RefereeCount int    `json:"refereeCount"`
	RefereeTotal int64  `json:"refereeTotal"`
	Amount       int64  `json:"amount"`
}

type Referee struct {
	AccountID string    `json:"accountId"`
	FullName  string    `json:"fullName"`
	JoinedAt  time.Time `json:"joinedAt"`
	Total     int64     `json:"total"`
}

type Stats struct {
	ReferralCode string    `json:"referralCode"`
	ReferredBy   *string   `json:"referredBy,omitempty"`
	Referees     []Referee `json:"referees"`
	Earnings     Earnings  `json:"earnings"`
}

type Graph struct {
	accounts *db.AccountRepository
	expenses *db.ExpenseRepository
	rate     decimal.Decimal
}

// ParseRate reads a commission rate such as "0.05".
func ParseRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing commission rate: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("commission rate %s out of range", rate)
	}
	return rate, nil
}

func NewGraph(accounts *db.AccountRepository, expenses *db.ExpenseRepository, rate decimal.Decimal) *Graph {
	return &Graph{accounts: accounts, expenses: expenses, rate: rate}
}

// NormalizeCode upper-cases and trims a typed code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate resolves code to its referrer. callerID is empty when the caller
// has no account yet.
func (g *Graph) Validate(ctx context.Context, callerID, code string) (*models.Account, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidReferral
	}

	referrer, err := g.accounts.FindByID(ctx, code)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidReferral
	}
	if err != nil {
		return nil, err
	}
	if !referrer.CanAct() || referrer.ID == callerID {
		return nil, ErrInvalidReferral
	}

	if callerID != "" {
		cyclic, err := g.accounts.IsAncestor(ctx, callerID, referrer.ID)
		if err != nil {
			return nil, err
		}
		if cyclic {
			return nil, ErrInvalidReferral
		}
	}
	return referrer, nil
}

// Attach gives an existing account without a referrer the referrer named by code.
func (g *Graph) Attach(ctx context.Context, refereeID, code string) (*models.Account, error) {
	referee, err := g.accounts.FindByID(ctx, refereeID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidReferral
	}
	if err != nil {
		return nil, err
	}
	if referee.ReferredBy != nil {
		return nil, ErrInvalidReferral
	}

	referrer, err := g.Validate(ctx, refereeID, code)
	if err != nil {
		return nil, err
	}

	if err := g.accounts.SetReferrer(ctx, refereeID, referrer.ID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidReferral
		}
		return nil, err
	}
	return referrer, nil
}

// Earnings is derived on every read from the referees' ledger totals and
// floored to whole currency units.
func (g *Graph) Earnings(ctx context.Context, referrerID string) (Earnings, error) {
	referees, err := g.accounts.ListReferees(ctx, referrerID)
	if err != nil {
		return Earnings{}, err
	}
	total, err := g.expenses.SumForReferees(ctx, referrerID)
	if err != nil {
		return Earnings{}, err
	}
	return g.earningsFor(len(referees), total), nil
}

func (g *Graph) Stats(ctx context.Context, account *models.Account) (*Stats, error) {
	referees, err := g.accounts.ListReferees(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		ReferralCode: account.ReferralCode(),
		ReferredBy:   account.ReferredBy,
		Referees:     make([]Referee, 0, len(referees)),
	}

	var sum int64
	for _, r := range referees {
		total, err := g.expenses.SumForAccount(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		sum += total
		stats.Referees = append(stats.Referees, Referee{
			AccountID: r.ID,
			FullName:  r.FullName,
			JoinedAt:  r.CreatedAt,
			Total:     total,
		})
	}
	stats.Earnings = g.earningsFor(len(referees), sum)
	return stats, nil
}

func (g *Graph) earningsFor(count int, total int64) Earnings {
	return Earnings{
		Rate:         g.rate.String(),
		RefereeCount: count,
		RefereeTotal: total,
		Amount:       decimal.NewFromInt(total).Mul(g.rate).Floor().IntPart(),
	}
}
