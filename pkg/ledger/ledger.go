package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kamauw/familyholdings/pkg/models"
	"github.com/kamauw/familyholdings/pkg/store"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrInvalidDuration         = errors.New("duration must be at least one week")
	ErrLoanNotPending          = errors.New("loan is not pending")
	ErrLoanNotApproved         = errors.New("loan is not in approved status")
	ErrContributionAlreadyPaid = errors.New("contribution already paid")
)

var (
	defaultBorrowLimitPercent = decimal.NewFromInt(75)
	hundred                   = decimal.NewFromInt(100)
)

// Ledger handles the business logic for users, contributions and loans. Every
// mutation that affects a user's ledger rows is followed by a recomputation of
// that user's derived fields, so the cached aggregates never survive a write
// stale.
type Ledger struct {
	storage store.Storage

	// userLocks serializes recomputations per user. The store only gives
	// last-write-wins on the profile row, so two concurrent recomputes for
	// the same user are made mutually exclusive here.
	userLocks sync.Map // uuid.UUID -> *sync.Mutex
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage) *Ledger {
	return &Ledger{storage: s}
}

// Storage exposes the underlying store for read-only plumbing (listings).
func (l *Ledger) Storage() store.Storage {
	return l.storage
}

func (l *Ledger) lockUser(id uuid.UUID) func() {
	v, _ := l.userLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreateUser registers a new member profile with zeroed derived fields.
func (l *Ledger) CreateUser(email, fullName string, role models.Role, weeklyContribution decimal.Decimal) (*models.User, error) {
	if role == "" {
		role = models.RoleMember
	}
	now := time.Now().UTC()
	user := &models.User{
		ID:                 uuid.New(),
		Email:              email,
		FullName:           fullName,
		Role:               role,
		WeeklyContribution: weeklyContribution,
		BorrowLimitPercent: defaultBorrowLimitPercent,
		TotalContributed:   decimal.Zero,
		BorrowingLimit:     decimal.Zero,
		CurrentLoanBalance: decimal.Zero,
		JoinedAt:           now,
		UpdatedAt:          now,
	}
	if err := l.storage.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to store user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user profile by id.
func (l *Ledger) GetUser(id uuid.UUID) (*models.User, error) {
	return l.storage.GetUser(id)
}

// GetAllUsers retrieves all user profiles.
func (l *Ledger) GetAllUsers() ([]*models.User, error) {
	return l.storage.GetAllUsers()
}

// UpdateUser persists profile field changes (identity and configuration
// fields only, never the derived aggregates).
func (l *Ledger) UpdateUser(user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	return l.storage.UpdateUser(user)
}

// CreateContribution schedules a pending contribution for a period. The store
// enforces one contribution per user per (year, week).
func (l *Ledger) CreateContribution(userID uuid.UUID, amount decimal.Decimal, periodYear, periodWeek int, dueDate time.Time) (*models.Contribution, error) {
	if amount.LessThan(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if _, err := l.storage.GetUser(userID); err != nil {
		return nil, err
	}
	c := &models.Contribution{
		ID:         uuid.New(),
		UserID:     userID,
		Amount:     amount,
		Status:     models.ContributionPending,
		PeriodYear: periodYear,
		PeriodWeek: periodWeek,
		DueDate:    dueDate,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.storage.CreateContribution(c); err != nil {
		return nil, err
	}
	return c, nil
}

// MarkContributionPaid transitions a contribution to completed, records the
// payment metadata, and recomputes the owner's derived fields.
func (l *Ledger) MarkContributionPaid(contributionID uuid.UUID, amount decimal.Decimal, method string) (*models.Contribution, error) {
	c, err := l.storage.GetContribution(contributionID)
	if err != nil {
		return nil, err
	}
	if c.Status == models.ContributionCompleted {
		return nil, ErrContributionAlreadyPaid
	}
	if amount.GreaterThan(decimal.Zero) {
		c.Amount = amount
	}
	if method == "" {
		method = "manual"
	}
	now := time.Now().UTC()
	c.Status = models.ContributionCompleted
	c.PaidAt = &now
	c.Method = method
	if err := l.storage.UpdateContribution(c); err != nil {
		return nil, err
	}
	if _, err := l.Recompute(c.UserID); err != nil {
		return nil, fmt.Errorf("contribution updated but recompute failed: %w", err)
	}
	return c, nil
}

// GetContributionsForUser lists a user's contributions.
func (l *Ledger) GetContributionsForUser(userID uuid.UUID) ([]*models.Contribution, error) {
	return l.storage.GetContributionsForUser(userID)
}

// GetAllContributions lists every contribution.
func (l *Ledger) GetAllContributions() ([]*models.Contribution, error) {
	return l.storage.GetAllContributions()
}

// DeleteContribution is the admin escape hatch for removing a ledger row.
// The owner's derived fields are recomputed afterwards.
func (l *Ledger) DeleteContribution(id uuid.UUID) error {
	c, err := l.storage.GetContribution(id)
	if err != nil {
		return err
	}
	if err := l.storage.DeleteContribution(id); err != nil {
		return err
	}
	if _, err := l.Recompute(c.UserID); err != nil {
		return fmt.Errorf("contribution deleted but recompute failed: %w", err)
	}
	return nil
}

// RequestLoan creates a pending loan. The weekly payment is derived from the
// principal and duration, rounded half-up to cents.
func (l *Ledger) RequestLoan(userID uuid.UUID, amount decimal.Decimal, durationWeeks int, reason string) (*models.Loan, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if durationWeeks <= 0 {
		return nil, ErrInvalidDuration
	}
	if _, err := l.storage.GetUser(userID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	loan := &models.Loan{
		ID:               uuid.New(),
		UserID:           userID,
		Amount:           amount,
		Status:           models.LoanPending,
		Reason:           reason,
		DurationWeeks:    durationWeeks,
		WeeklyPayment:    amount.Div(decimal.NewFromInt(int64(durationWeeks))).Round(2),
		RemainingBalance: amount,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := l.storage.CreateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}
	return loan, nil
}

// ApproveLoan moves a pending loan to approved and recomputes the borrower's
// derived fields, since approved loans count toward the loan balance.
func (l *Ledger) ApproveLoan(loanID uuid.UUID) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != models.LoanPending {
		return nil, ErrLoanNotPending
	}
	now := time.Now().UTC()
	loan.Status = models.LoanApproved
	loan.ApprovedAt = &now
	loan.UpdatedAt = now
	if err := l.storage.UpdateLoan(loan); err != nil {
		return nil, err
	}
	if _, err := l.Recompute(loan.UserID); err != nil {
		return nil, fmt.Errorf("loan approved but recompute failed: %w", err)
	}
	return loan, nil
}

// RejectLoan moves a pending loan to rejected.
func (l *Ledger) RejectLoan(loanID uuid.UUID) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != models.LoanPending {
		return nil, ErrLoanNotPending
	}
	now := time.Now().UTC()
	loan.Status = models.LoanRejected
	loan.RejectedAt = &now
	loan.UpdatedAt = now
	if err := l.storage.UpdateLoan(loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(id uuid.UUID) (*models.Loan, error) {
	return l.storage.GetLoan(id)
}

// GetLoansForUser lists a user's loans.
func (l *Ledger) GetLoansForUser(userID uuid.UUID) ([]*models.Loan, error) {
	return l.storage.GetLoansForUser(userID)
}

// GetAllLoans retrieves all loans.
func (l *Ledger) GetAllLoans() ([]*models.Loan, error) {
	return l.storage.GetAllLoans()
}

// DeleteLoan is the admin escape hatch for removing a loan and its payments.
func (l *Ledger) DeleteLoan(id uuid.UUID) error {
	loan, err := l.storage.GetLoan(id)
	if err != nil {
		return err
	}
	if err := l.storage.DeleteLoan(id); err != nil {
		return err
	}
	if _, err := l.Recompute(loan.UserID); err != nil {
		return fmt.Errorf("loan deleted but recompute failed: %w", err)
	}
	return nil
}

// RecordLoanPayment appends an immutable payment record, decrements the
// loan's remaining balance, transitions the loan to paid once the balance
// reaches zero, and recomputes the borrower's derived fields.
func (l *Ledger) RecordLoanPayment(loanID uuid.UUID, amount decimal.Decimal) (*models.LoanPayment, *models.Loan, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, ErrInvalidAmount
	}
	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return nil, nil, err
	}
	if loan.Status != models.LoanApproved {
		return nil, nil, ErrLoanNotApproved
	}

	payment := &models.LoanPayment{
		ID:     uuid.New(),
		LoanID: loan.ID,
		UserID: loan.UserID,
		Amount: amount,
		PaidAt: time.Now().UTC(),
	}
	if err := l.storage.CreateLoanPayment(payment); err != nil {
		return nil, nil, fmt.Errorf("failed to store loan payment: %w", err)
	}

	loan.RemainingBalance = loan.RemainingBalance.Sub(amount)
	if loan.RemainingBalance.LessThanOrEqual(decimal.Zero) {
		loan.RemainingBalance = decimal.Zero
		loan.Status = models.LoanPaid
	}
	loan.UpdatedAt = time.Now().UTC()
	if err := l.storage.UpdateLoan(loan); err != nil {
		return nil, nil, fmt.Errorf("failed to update loan balance: %w", err)
	}
	if _, err := l.Recompute(loan.UserID); err != nil {
		return nil, nil, fmt.Errorf("payment recorded but recompute failed: %w", err)
	}
	return payment, loan, nil
}

// ReconcileLoan re-derives a loan's remaining balance from its append-only
// payment history (amount minus the sum of payments). The decremented
// remaining_balance column and the payment rows are two representations of
// the same fact; this repairs the former when it drifts from the latter.
func (l *Ledger) ReconcileLoan(loanID uuid.UUID) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	payments, err := l.storage.GetPaymentsForLoan(loanID)
	if err != nil {
		return nil, err
	}

	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	expected := loan.Amount.Sub(paid)
	if expected.LessThanOrEqual(decimal.Zero) {
		expected = decimal.Zero
	}

	if loan.RemainingBalance.Equal(expected) {
		return loan, nil
	}

	loan.RemainingBalance = expected
	if expected.IsZero() && loan.Status == models.LoanApproved {
		loan.Status = models.LoanPaid
	}
	loan.UpdatedAt = time.Now().UTC()
	if err := l.storage.UpdateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to reconcile loan balance: %w", err)
	}
	if _, err := l.Recompute(loan.UserID); err != nil {
		return nil, fmt.Errorf("loan reconciled but recompute failed: %w", err)
	}
	return loan, nil
}

// LoanCapacity summarizes how much credit a user has available, computed
// fresh from ledger rows rather than the cached profile fields.
type LoanCapacity struct {
	TotalContributed        decimal.Decimal `json:"total_contributed"`
	BorrowingLimit          decimal.Decimal `json:"borrowing_limit"`
	CurrentLoanBalance      decimal.Decimal `json:"current_loan_balance"`
	AvailableCredit         decimal.Decimal `json:"available_credit"`
	LoanToContributionRatio decimal.Decimal `json:"loan_to_contribution_ratio"`
}

// GetLoanCapacity reports a user's borrowing headroom.
func (l *Ledger) GetLoanCapacity(userID uuid.UUID) (*LoanCapacity, error) {
	user, err := l.storage.GetUser(userID)
	if err != nil {
		return nil, err
	}
	total, err := l.aggregateContributions(userID)
	if err != nil {
		return nil, err
	}
	balance, err := l.aggregateLoanBalance(userID)
	if err != nil {
		return nil, err
	}

	limit := borrowingLimit(total, effectivePercent(user))
	available := limit.Sub(balance)
	if available.LessThan(decimal.Zero) {
		available = decimal.Zero
	}
	ratio := decimal.Zero
	if total.GreaterThan(decimal.Zero) {
		ratio = balance.Div(total).Round(4)
	}
	return &LoanCapacity{
		TotalContributed:        total,
		BorrowingLimit:          limit,
		CurrentLoanBalance:      balance.Round(2),
		AvailableCredit:         available,
		LoanToContributionRatio: ratio,
	}, nil
}

// Stats summarizes a member's contribution standing against expectations.
type Stats struct {
	WeeklyContribution decimal.Decimal `json:"weekly_contribution"`
	WeeksActive        int             `json:"weeks_active"`
	ExpectedTotal      decimal.Decimal `json:"expected_total"`
	ActualTotal        decimal.Decimal `json:"actual_total"`
	Deficiency         decimal.Decimal `json:"deficiency"`
	CurrentLoanBalance decimal.Decimal `json:"current_loan_balance"`
	BorrowingLimit     decimal.Decimal `json:"borrowing_limit"`
}

// GetStats reports expected versus actual contribution totals for a user,
// based on the weekly contribution amount and weeks since joining.
func (l *Ledger) GetStats(userID uuid.UUID) (*Stats, error) {
	user, err := l.storage.GetUser(userID)
	if err != nil {
		return nil, err
	}

	days := int(time.Now().UTC().Sub(user.JoinedAt).Hours() / 24)
	if days < 0 {
		days = 0
	}
	weeksActive := days / 7
	if weeksActive < 1 {
		weeksActive = 1
	}

	expected := user.WeeklyContribution.Mul(decimal.NewFromInt(int64(weeksActive)))
	deficiency := expected.Sub(user.TotalContributed)
	if deficiency.LessThan(decimal.Zero) {
		deficiency = decimal.Zero
	}
	return &Stats{
		WeeklyContribution: user.WeeklyContribution,
		WeeksActive:        weeksActive,
		ExpectedTotal:      expected,
		ActualTotal:        user.TotalContributed,
		Deficiency:         deficiency,
		CurrentLoanBalance: user.CurrentLoanBalance,
		BorrowingLimit:     user.BorrowingLimit,
	}, nil
}
