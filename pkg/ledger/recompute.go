package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kamauw/familyholdings/pkg/models"
	"github.com/shopspring/decimal"
)

// RecomputeResult holds the derived fields produced for one user.
type RecomputeResult struct {
	UserID             uuid.UUID       `json:"user_id"`
	TotalContributed   decimal.Decimal `json:"total_contributed"`
	BorrowingLimit     decimal.Decimal `json:"borrowing_limit"`
	CurrentLoanBalance decimal.Decimal `json:"current_loan_balance"`
}

// RecomputeOutcome is one user's entry in a batch recomputation. Err is set
// when that user's recompute failed; the rest of the batch proceeds.
type RecomputeOutcome struct {
	UserID uuid.UUID        `json:"user_id"`
	Result *RecomputeResult `json:"result,omitempty"`
	Err    error            `json:"-"`
	Error  string           `json:"error,omitempty"`
}

// aggregateContributions sums the amounts of all contributions that count
// toward total_contributed (completed, including rows carrying the legacy
// 'paid' status).
func (l *Ledger) aggregateContributions(userID uuid.UUID) (decimal.Decimal, error) {
	contributions, err := l.storage.GetCompletedContributionsForUser(userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, c := range contributions {
		total = total.Add(c.Amount)
	}
	return total, nil
}

// aggregateLoanBalance sums remaining_balance across the user's approved
// loans.
func (l *Ledger) aggregateLoanBalance(userID uuid.UUID) (decimal.Decimal, error) {
	loans, err := l.storage.GetApprovedLoansForUser(userID)
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, loan := range loans {
		balance = balance.Add(loan.RemainingBalance)
	}
	return balance, nil
}

// effectivePercent returns the user's configured borrow limit percentage,
// falling back to the 75 default when unset.
func effectivePercent(user *models.User) decimal.Decimal {
	if user.BorrowLimitPercent.LessThanOrEqual(decimal.Zero) {
		return defaultBorrowLimitPercent
	}
	return user.BorrowLimitPercent
}

// borrowingLimit applies the ratio law: round(total * percent/100, 2,
// half-up). Rounding happens once, at the final 2-decimal step.
func borrowingLimit(totalContributed, percent decimal.Decimal) decimal.Decimal {
	return totalContributed.Mul(percent).Div(hundred).Round(2)
}

// Recompute derives total_contributed, borrowing_limit and
// current_loan_balance for a user from the ledger rows and persists them to
// the profile. It is a pure function of ledger state: re-running against
// unchanged rows writes identical values.
func (l *Ledger) Recompute(userID uuid.UUID) (*RecomputeResult, error) {
	unlock := l.lockUser(userID)
	defer unlock()

	user, err := l.storage.GetUser(userID)
	if err != nil {
		return nil, err
	}

	total, err := l.aggregateContributions(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate contributions for user %s: %w", userID, err)
	}
	balance, err := l.aggregateLoanBalance(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate loan balance for user %s: %w", userID, err)
	}
	balance = balance.Round(2)
	limit := borrowingLimit(total, effectivePercent(user))

	if err := l.storage.UpdateUserDerived(userID, total, limit, balance); err != nil {
		return nil, fmt.Errorf("failed to persist derived fields for user %s: %w", userID, err)
	}
	return &RecomputeResult{
		UserID:             userID,
		TotalContributed:   total,
		BorrowingLimit:     limit,
		CurrentLoanBalance: balance,
	}, nil
}

// RecomputeAll recomputes derived fields for every user. One user's failure
// does not abort the batch; each outcome carries its own error and the user
// can be retried individually.
func (l *Ledger) RecomputeAll() ([]RecomputeOutcome, error) {
	users, err := l.storage.GetAllUsers()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	outcomes := make([]RecomputeOutcome, 0, len(users))
	for _, user := range users {
		outcome := RecomputeOutcome{UserID: user.ID}
		result, err := l.Recompute(user.ID)
		if err != nil {
			outcome.Err = err
			outcome.Error = err.Error()
		} else {
			outcome.Result = result
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}
