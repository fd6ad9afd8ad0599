package ledger

import (
	"github.com/google/uuid"
	"github.com/kamauw/familyholdings/pkg/models"
	"github.com/kamauw/familyholdings/pkg/store"
	"github.com/shopspring/decimal"
)

// MockStore is a simple in-memory implementation of the Storage interface for
// testing. contribErrFor injects a per-user failure when aggregating
// contributions, for the batch isolation tests.
type MockStore struct {
	users         map[uuid.UUID]*models.User
	contributions map[uuid.UUID]*models.Contribution
	loans         map[uuid.UUID]*models.Loan
	payments      []*models.LoanPayment
	contribErrFor map[uuid.UUID]error
}

func NewMockStore() *MockStore {
	return &MockStore{
		users:         make(map[uuid.UUID]*models.User),
		contributions: make(map[uuid.UUID]*models.Contribution),
		loans:         make(map[uuid.UUID]*models.Loan),
		contribErrFor: make(map[uuid.UUID]error),
	}
}

func (m *MockStore) CreateUser(user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *MockStore) GetUser(id uuid.UUID) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return user, nil
}

func (m *MockStore) UpdateUser(user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return store.ErrUserNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockStore) UpdateUserDerived(id uuid.UUID, total, limit, balance decimal.Decimal) error {
	user, ok := m.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	user.TotalContributed = total
	user.BorrowingLimit = limit
	user.CurrentLoanBalance = balance
	return nil
}

func (m *MockStore) GetAllUsers() ([]*models.User, error) {
	users := []*models.User{}
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

func (m *MockStore) CreateContribution(c *models.Contribution) error {
	for _, existing := range m.contributions {
		if existing.UserID == c.UserID && existing.PeriodYear == c.PeriodYear && existing.PeriodWeek == c.PeriodWeek {
			return store.ErrDuplicatePeriod
		}
	}
	m.contributions[c.ID] = c
	return nil
}

func (m *MockStore) CreateContributionIfVacant(c *models.Contribution) (bool, error) {
	err := m.CreateContribution(c)
	if err == store.ErrDuplicatePeriod {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *MockStore) GetContribution(id uuid.UUID) (*models.Contribution, error) {
	c, ok := m.contributions[id]
	if !ok {
		return nil, store.ErrContributionNotFound
	}
	return c, nil
}

func (m *MockStore) UpdateContribution(c *models.Contribution) error {
	if _, ok := m.contributions[c.ID]; !ok {
		return store.ErrContributionNotFound
	}
	m.contributions[c.ID] = c
	return nil
}

func (m *MockStore) DeleteContribution(id uuid.UUID) error {
	if _, ok := m.contributions[id]; !ok {
		return store.ErrContributionNotFound
	}
	delete(m.contributions, id)
	return nil
}

func (m *MockStore) GetContributionsForUser(userID uuid.UUID) ([]*models.Contribution, error) {
	result := []*models.Contribution{}
	for _, c := range m.contributions {
		if c.UserID == userID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *MockStore) GetCompletedContributionsForUser(userID uuid.UUID) ([]*models.Contribution, error) {
	if err := m.contribErrFor[userID]; err != nil {
		return nil, err
	}
	result := []*models.Contribution{}
	for _, c := range m.contributions {
		if c.UserID == userID && c.Status == models.ContributionCompleted {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *MockStore) GetAllContributions() ([]*models.Contribution, error) {
	result := []*models.Contribution{}
	for _, c := range m.contributions {
		result = append(result, c)
	}
	return result, nil
}

func (m *MockStore) HasContributionForPeriod(userID uuid.UUID, year, week int) (bool, error) {
	for _, c := range m.contributions {
		if c.UserID == userID && c.PeriodYear == year && c.PeriodWeek == week {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockStore) CreateLoan(loan *models.Loan) error {
	m.loans[loan.ID] = loan
	return nil
}

func (m *MockStore) GetLoan(id uuid.UUID) (*models.Loan, error) {
	loan, ok := m.loans[id]
	if !ok {
		return nil, store.ErrLoanNotFound
	}
	return loan, nil
}

func (m *MockStore) UpdateLoan(loan *models.Loan) error {
	if _, ok := m.loans[loan.ID]; !ok {
		return store.ErrLoanNotFound
	}
	m.loans[loan.ID] = loan
	return nil
}

func (m *MockStore) DeleteLoan(id uuid.UUID) error {
	if _, ok := m.loans[id]; !ok {
		return store.ErrLoanNotFound
	}
	delete(m.loans, id)
	return nil
}

func (m *MockStore) GetLoansForUser(userID uuid.UUID) ([]*models.Loan, error) {
	result := []*models.Loan{}
	for _, l := range m.loans {
		if l.UserID == userID {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *MockStore) GetApprovedLoansForUser(userID uuid.UUID) ([]*models.Loan, error) {
	result := []*models.Loan{}
	for _, l := range m.loans {
		if l.UserID == userID && l.Status == models.LoanApproved {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *MockStore) GetAllLoans() ([]*models.Loan, error) {
	result := []*models.Loan{}
	for _, l := range m.loans {
		result = append(result, l)
	}
	return result, nil
}

func (m *MockStore) CreateLoanPayment(p *models.LoanPayment) error {
	m.payments = append(m.payments, p)
	return nil
}

func (m *MockStore) GetPaymentsForLoan(loanID uuid.UUID) ([]*models.LoanPayment, error) {
	result := []*models.LoanPayment{}
	for _, p := range m.payments {
		if p.LoanID == loanID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *MockStore) Close() error {
	return nil
}
