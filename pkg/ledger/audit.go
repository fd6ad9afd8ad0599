package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kamauw/familyholdings/pkg/models"
	"github.com/shopspring/decimal"
)

// maxBackfillAttempts bounds how many periods a backfill will advance past
// occupied (user, year, week) slots before giving up.
const maxBackfillAttempts = 52

// DirectAdjustment is remediation option A: overwrite the profile's derived
// fields with the computed minimums. No ledger record is created, so this
// breaks ledger/derived-field traceability and is the lower-fidelity fix.
type DirectAdjustment struct {
	NewTotalContributed decimal.Decimal `json:"new_total_contributed"`
	NewBorrowingLimit   decimal.Decimal `json:"new_borrowing_limit"`
}

// BackfillContribution is remediation option B: one synthetic completed
// contribution that closes the gap through legitimate ledger growth.
type BackfillContribution struct {
	PeriodYear int             `json:"period_year"`
	PeriodWeek int             `json:"period_week"`
	Amount     decimal.Decimal `json:"amount"`
}

// UnderCollateralizedEntry describes one user whose outstanding loan balance
// exceeds their borrowing limit, with two mutually exclusive remediation
// options. Neither option is ever applied automatically.
type UnderCollateralizedEntry struct {
	UserID                      uuid.UUID             `json:"user_id"`
	FullName                    string                `json:"full_name"`
	TotalContributed            decimal.Decimal       `json:"total_contributed"`
	CurrentLoanBalance          decimal.Decimal       `json:"current_loan_balance"`
	BorrowLimitPercent          decimal.Decimal       `json:"borrow_limit_percent"`
	RequiredMinTotalContributed decimal.Decimal       `json:"required_min_total_contributed"`
	DeficitToCover              decimal.Decimal       `json:"deficit_to_cover"`
	Adjustment                  DirectAdjustment      `json:"adjustment"`
	Backfill                    *BackfillContribution `json:"backfill,omitempty"`
}

// Audit scans all users and reports those whose recomputed loan balance
// exceeds their recomputed borrowing limit. It is read-only: the remediation
// plan it emits is applied only through the explicit Apply helpers after
// human review.
func (l *Ledger) Audit() ([]UnderCollateralizedEntry, error) {
	users, err := l.storage.GetAllUsers()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	year, week := time.Now().UTC().ISOWeek()

	var entries []UnderCollateralizedEntry
	for _, user := range users {
		total, err := l.aggregateContributions(user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate contributions for user %s: %w", user.ID, err)
		}
		balance, err := l.aggregateLoanBalance(user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate loan balance for user %s: %w", user.ID, err)
		}

		percent := effectivePercent(user)
		ratio := percent.Div(hundred)

		// Under-collateralized iff there is an outstanding balance and the
		// collateralized share of contributions does not cover it.
		if !balance.GreaterThan(decimal.Zero) || !total.Mul(ratio).LessThan(balance) {
			continue
		}

		requiredMin := balance.Div(ratio)
		deficit := requiredMin.Sub(total).Round(2)

		entry := UnderCollateralizedEntry{
			UserID:                      user.ID,
			FullName:                    user.FullName,
			TotalContributed:            total,
			CurrentLoanBalance:          balance,
			BorrowLimitPercent:          percent,
			RequiredMinTotalContributed: requiredMin.Round(2),
			DeficitToCover:              deficit,
			Adjustment: DirectAdjustment{
				NewTotalContributed: requiredMin.Round(2),
				NewBorrowingLimit:   requiredMin.Round(2).Mul(ratio).Round(2),
			},
		}
		if deficit.GreaterThan(decimal.Zero) {
			byear, bweek, err := l.planBackfillPeriod(user.ID, year, week)
			if err != nil {
				return nil, err
			}
			entry.Backfill = &BackfillContribution{
				PeriodYear: byear,
				PeriodWeek: bweek,
				Amount:     deficit,
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// planBackfillPeriod finds the first period at or after (year, week) with no
// existing contribution for the user, so the synthetic row never collides
// with the uniqueness constraint.
func (l *Ledger) planBackfillPeriod(userID uuid.UUID, year, week int) (int, int, error) {
	for i := 0; i < maxBackfillAttempts; i++ {
		occupied, err := l.storage.HasContributionForPeriod(userID, year, week)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to check backfill period for user %s: %w", userID, err)
		}
		if !occupied {
			return year, week, nil
		}
		year, week = nextPeriod(year, week)
	}
	return 0, 0, fmt.Errorf("no vacant contribution period found for user %s within %d weeks", userID, maxBackfillAttempts)
}

// nextPeriod advances one ISO week, rolling over the year when needed.
func nextPeriod(year, week int) (int, int) {
	if week >= isoWeeksInYear(year) {
		return year + 1, 1
	}
	return year, week + 1
}

// isoWeeksInYear reports whether year has 52 or 53 ISO weeks. Dec 28 always
// falls in the last ISO week of its year.
func isoWeeksInYear(year int) int {
	_, week := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return week
}

// ApplyDirectAdjustment executes remediation option A for one audit entry:
// the profile's derived fields are overwritten with the computed minimums.
// Intentionally not followed by a recompute, which would undo it.
func (l *Ledger) ApplyDirectAdjustment(entry UnderCollateralizedEntry) error {
	return l.storage.UpdateUserDerived(
		entry.UserID,
		entry.Adjustment.NewTotalContributed,
		entry.Adjustment.NewBorrowingLimit,
		entry.CurrentLoanBalance.Round(2),
	)
}

// ApplyBackfill executes remediation option B for one audit entry: a single
// synthetic completed contribution covering the deficit. Period collisions
// are tolerated by advancing to the next vacant week; the repair is never
// silently dropped.
func (l *Ledger) ApplyBackfill(entry UnderCollateralizedEntry) (*models.Contribution, error) {
	if entry.Backfill == nil {
		return nil, fmt.Errorf("audit entry for user %s has no backfill option", entry.UserID)
	}

	now := time.Now().UTC()
	year, week := entry.Backfill.PeriodYear, entry.Backfill.PeriodWeek
	for i := 0; i < maxBackfillAttempts; i++ {
		c := &models.Contribution{
			ID:         uuid.New(),
			UserID:     entry.UserID,
			Amount:     entry.Backfill.Amount,
			Status:     models.ContributionCompleted,
			PeriodYear: year,
			PeriodWeek: week,
			DueDate:    now,
			PaidAt:     &now,
			Method:     "backfill",
			CreatedAt:  now,
		}
		inserted, err := l.storage.CreateContributionIfVacant(c)
		if err != nil {
			return nil, err
		}
		if inserted {
			if _, err := l.Recompute(entry.UserID); err != nil {
				return nil, fmt.Errorf("backfill inserted but recompute failed: %w", err)
			}
			return c, nil
		}
		year, week = nextPeriod(year, week)
	}
	return nil, fmt.Errorf("backfill for user %s could not find a vacant period within %d weeks", entry.UserID, maxBackfillAttempts)
}

// RenderPlanSQL formats an audit result as a reviewable SQL repair plan,
// one commented report section followed by the two remediation options.
// Presentation only; the structured entries remain the contract.
func RenderPlanSQL(entries []UnderCollateralizedEntry) string {
	var b strings.Builder

	b.WriteString("-- AUDIT REPORT: Under-collateralized Users\n")
	if len(entries) == 0 {
		b.WriteString("-- none found\n")
		return b.String()
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "-- User %s (%s) loan_balance=%s total_contributed=%s required_min=%s deficit=%s\n",
			e.UserID, e.FullName, e.CurrentLoanBalance.StringFixed(2), e.TotalContributed.StringFixed(2),
			e.RequiredMinTotalContributed.StringFixed(2), e.DeficitToCover.StringFixed(2))
	}

	b.WriteString("\n-- OPTION A: Direct profile field adjustments (does NOT create contribution records)\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "UPDATE profiles SET total_contributed = %s, borrowing_limit = %s, updated_at = CURRENT_TIMESTAMP WHERE id = '%s';\n",
			e.Adjustment.NewTotalContributed.StringFixed(2), e.Adjustment.NewBorrowingLimit.StringFixed(2), e.UserID)
	}

	b.WriteString("\n-- OPTION B: Backfill a single synthetic completed contribution to cover deficit\n")
	b.WriteString("-- Insert is conflict-tolerant: an occupied (user, year, week) slot makes it a no-op.\n")
	for _, e := range entries {
		if e.Backfill == nil {
			continue
		}
		fmt.Fprintf(&b, "INSERT OR IGNORE INTO contributions (id, user_id, amount, status, period_year, period_week, due_date, paid_at, method, created_at) VALUES ('%s', '%s', %s, 'completed', %d, %d, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, 'backfill', CURRENT_TIMESTAMP);\n",
			uuid.NewString(), e.UserID, e.Backfill.Amount.StringFixed(2), e.Backfill.PeriodYear, e.Backfill.PeriodWeek)
	}

	b.WriteString("\n-- After executing one option, re-run recompute to normalize derived fields.\n")
	return b.String()
}
