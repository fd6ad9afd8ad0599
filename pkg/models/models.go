package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type ContributionStatus string

const (
	ContributionPending   ContributionStatus = "pending"
	ContributionCompleted ContributionStatus = "completed"
	ContributionLate      ContributionStatus = "late"
	ContributionMissed    ContributionStatus = "missed"

	// contributionLegacyPaid is the old status value some historical rows
	// carry for a paid contribution. It is normalized to "completed" at the
	// store boundary and must never be written for new rows.
	contributionLegacyPaid = "paid"
)

// NormalizeContributionStatus maps raw status text from the store onto the
// canonical enum. Unknown values pass through unchanged so bad data stays
// visible rather than being masked.
func NormalizeContributionStatus(raw string) ContributionStatus {
	if raw == contributionLegacyPaid {
		return ContributionCompleted
	}
	return ContributionStatus(raw)
}

type LoanStatus string

const (
	LoanPending  LoanStatus = "pending"
	LoanApproved LoanStatus = "approved"
	LoanRejected LoanStatus = "rejected"
	LoanPaid     LoanStatus = "paid"
)

// User is one member of the pool. TotalContributed, BorrowingLimit and
// CurrentLoanBalance are derived caches over the contribution/loan ledger;
// they are recomputed after every ledger mutation and must never be edited
// independently of the ledger except as an explicit repair.
type User struct {
	ID                 uuid.UUID       `json:"id"`
	Email              string          `json:"email"`
	FullName           string          `json:"full_name"`
	Role               Role            `json:"role"`
	WeeklyContribution decimal.Decimal `json:"weekly_contribution"`
	BorrowLimitPercent decimal.Decimal `json:"borrow_limit_percent"` // default 75
	TotalContributed   decimal.Decimal `json:"total_contributed"`
	BorrowingLimit     decimal.Decimal `json:"borrowing_limit"`
	CurrentLoanBalance decimal.Decimal `json:"current_loan_balance"`
	JoinedAt           time.Time       `json:"joined_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Contribution is one periodic payment owed or made by a user. The period
// (year + ISO week) is unique per user. Immutable once created except for
// status and payment metadata.
type Contribution struct {
	ID         uuid.UUID          `json:"id"`
	UserID     uuid.UUID          `json:"user_id"`
	Amount     decimal.Decimal    `json:"amount"`
	Status     ContributionStatus `json:"status"`
	PeriodYear int                `json:"period_year"`
	PeriodWeek int                `json:"period_week"`
	DueDate    time.Time          `json:"due_date"`
	PaidAt     *time.Time         `json:"paid_at,omitempty"`
	Method     string             `json:"method,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Loan is principal borrowed against contribution history. RemainingBalance
// starts at Amount and decreases with payments; only approved loans count
// toward a user's current loan balance.
type Loan struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"user_id"`
	Amount           decimal.Decimal `json:"amount"`
	Status           LoanStatus      `json:"status"`
	Reason           string          `json:"reason,omitempty"`
	DurationWeeks    int             `json:"duration_weeks"`
	WeeklyPayment    decimal.Decimal `json:"weekly_payment"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	RejectedAt       *time.Time      `json:"rejected_at,omitempty"`
}

// LoanPayment is an immutable append-only record of a payment applied to a
// loan. The sum of payments for a loan and the loan's decremented
// remaining_balance are two representations of the same fact and must
// reconcile (see ledger.ReconcileLoan).
type LoanPayment struct {
	ID     uuid.UUID       `json:"id"`
	LoanID uuid.UUID       `json:"loan_id"`
	UserID uuid.UUID       `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
	PaidAt time.Time       `json:"paid_at"`
}
