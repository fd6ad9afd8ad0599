package store

import (
	"errors"

	"github.com/google/uuid"
	"github.com/kamauw/familyholdings/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrContributionNotFound = errors.New("contribution not found")

	// ErrDuplicatePeriod is returned when an insert violates the one
	// contribution per user per (period_year, period_week) constraint.
	ErrDuplicatePeriod = errors.New("contribution period already exists for user")
)

// Storage defines the persistence operations the ledger needs. All monetary
// values cross this boundary as decimal.Decimal; implementations own the
// serialization format.
type Storage interface {
	CreateUser(user *models.User) error
	GetUser(id uuid.UUID) (*models.User, error)
	UpdateUser(user *models.User) error
	// UpdateUserDerived persists only the three derived aggregate fields.
	UpdateUserDerived(id uuid.UUID, totalContributed, borrowingLimit, currentLoanBalance decimal.Decimal) error
	GetAllUsers() ([]*models.User, error)

	CreateContribution(c *models.Contribution) error
	// CreateContributionIfVacant inserts the contribution unless its
	// (user_id, period_year, period_week) slot is already taken, in which
	// case it reports false with no error.
	CreateContributionIfVacant(c *models.Contribution) (bool, error)
	GetContribution(id uuid.UUID) (*models.Contribution, error)
	UpdateContribution(c *models.Contribution) error
	DeleteContribution(id uuid.UUID) error
	GetContributionsForUser(userID uuid.UUID) ([]*models.Contribution, error)
	// GetCompletedContributionsForUser returns contributions that count
	// toward total_contributed, including rows still carrying the legacy
	// "paid" status value.
	GetCompletedContributionsForUser(userID uuid.UUID) ([]*models.Contribution, error)
	GetAllContributions() ([]*models.Contribution, error)
	HasContributionForPeriod(userID uuid.UUID, year, week int) (bool, error)

	CreateLoan(loan *models.Loan) error
	GetLoan(id uuid.UUID) (*models.Loan, error)
	UpdateLoan(loan *models.Loan) error
	DeleteLoan(id uuid.UUID) error
	GetLoansForUser(userID uuid.UUID) ([]*models.Loan, error)
	GetApprovedLoansForUser(userID uuid.UUID) ([]*models.Loan, error)
	GetAllLoans() ([]*models.Loan, error)

	CreateLoanPayment(p *models.LoanPayment) error
	GetPaymentsForLoan(loanID uuid.UUID) ([]*models.LoanPayment, error)

	Close() error
}
