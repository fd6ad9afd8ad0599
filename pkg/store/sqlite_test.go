package store

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kamauw/familyholdings/pkg/models"
	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T, dbFile string) *SQLiteStore {
	os.Remove(dbFile)
	t.Cleanup(func() { os.Remove(dbFile) })

	s, err := NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testUser(t *testing.T, s *SQLiteStore) *models.User {
	user := &models.User{
		ID:                 uuid.New(),
		Email:              "amina@example.com",
		FullName:           "Amina Test",
		Role:               models.RoleMember,
		WeeklyContribution: decimal.NewFromInt(100),
		BorrowLimitPercent: decimal.NewFromInt(75),
		TotalContributed:   decimal.Zero,
		BorrowingLimit:     decimal.Zero,
		CurrentLoanBalance: decimal.Zero,
		JoinedAt:           time.Now().UTC(),
		UpdatedAt:          time.Now().UTC(),
	}
	if err := s.CreateUser(user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func TestSQLiteStore_CreateAndGetUser(t *testing.T) {
	s := newTestStore(t, "test_store_users.db")
	user := testUser(t, s)

	fetched, err := s.GetUser(user.ID)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if fetched.FullName != user.FullName {
		t.Errorf("Expected FullName %s, got %s", user.FullName, fetched.FullName)
	}
	if !fetched.BorrowLimitPercent.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Expected percent 75, got %s", fetched.BorrowLimitPercent)
	}

	if _, err := s.GetUser(uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestSQLiteStore_UpdateUserDerivedPreservesPrecision(t *testing.T) {
	s := newTestStore(t, "test_store_derived.db")
	user := testUser(t, s)

	total := decimal.RequireFromString("1234.56")
	limit := decimal.RequireFromString("925.92")
	balance := decimal.RequireFromString("140.00")
	if err := s.UpdateUserDerived(user.ID, total, limit, balance); err != nil {
		t.Fatalf("Failed to update derived fields: %v", err)
	}

	fetched, _ := s.GetUser(user.ID)
	if !fetched.TotalContributed.Equal(total) {
		t.Errorf("Expected total %s, got %s", total, fetched.TotalContributed)
	}
	if !fetched.BorrowingLimit.Equal(limit) {
		t.Errorf("Expected limit %s, got %s", limit, fetched.BorrowingLimit)
	}
	if !fetched.CurrentLoanBalance.Equal(balance) {
		t.Errorf("Expected balance %s, got %s", balance, fetched.CurrentLoanBalance)
	}
}

func newContribution(userID uuid.UUID, amount string, status models.ContributionStatus, year, week int) *models.Contribution {
	return &models.Contribution{
		ID:         uuid.New(),
		UserID:     userID,
		Amount:     decimal.RequireFromString(amount),
		Status:     status,
		PeriodYear: year,
		PeriodWeek: week,
		DueDate:    time.Now().UTC(),
		CreatedAt:  time.Now().UTC(),
	}
}

func TestSQLiteStore_ContributionUniquePeriod(t *testing.T) {
	s := newTestStore(t, "test_store_period.db")
	user := testUser(t, s)

	first := newContribution(user.ID, "100.00", models.ContributionPending, 2026, 10)
	if err := s.CreateContribution(first); err != nil {
		t.Fatalf("Failed to create contribution: %v", err)
	}

	dupe := newContribution(user.ID, "50.00", models.ContributionPending, 2026, 10)
	if err := s.CreateContribution(dupe); !errors.Is(err, ErrDuplicatePeriod) {
		t.Errorf("Expected ErrDuplicatePeriod, got %v", err)
	}

	// The conflict-tolerant variant reports the collision without an error.
	inserted, err := s.CreateContributionIfVacant(dupe)
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if inserted {
		t.Error("Expected upsert to be a no-op on an occupied period")
	}

	vacant := newContribution(user.ID, "50.00", models.ContributionPending, 2026, 11)
	inserted, err = s.CreateContributionIfVacant(vacant)
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if !inserted {
		t.Error("Expected upsert to insert into a vacant period")
	}
}

func TestSQLiteStore_MalformedAmountRowIsSkipped(t *testing.T) {
	s := newTestStore(t, "test_store_malformed.db")
	user := testUser(t, s)

	good := newContribution(user.ID, "75.00", models.ContributionCompleted, 2026, 1)
	bad := newContribution(user.ID, "75.00", models.ContributionCompleted, 2026, 2)
	if err := s.CreateContribution(good); err != nil {
		t.Fatalf("Failed to create contribution: %v", err)
	}
	if err := s.CreateContribution(bad); err != nil {
		t.Fatalf("Failed to create contribution: %v", err)
	}

	// Corrupt one row's monetary field behind the store's back.
	if _, err := s.db.Exec(`UPDATE contributions SET amount = 'garbage' WHERE id = ?`, bad.ID.String()); err != nil {
		t.Fatalf("Failed to corrupt row: %v", err)
	}

	contributions, err := s.GetCompletedContributionsForUser(user.ID)
	if err != nil {
		t.Fatalf("Expected malformed row to be skipped, got error: %v", err)
	}
	if len(contributions) != 1 {
		t.Fatalf("Expected 1 contribution after skipping the bad row, got %d", len(contributions))
	}
	if contributions[0].ID != good.ID {
		t.Errorf("Expected the intact row to survive, got %s", contributions[0].ID)
	}
}

func TestSQLiteStore_LegacyPaidStatusCounts(t *testing.T) {
	s := newTestStore(t, "test_store_legacy.db")
	user := testUser(t, s)

	// Historical rows wrote 'paid' where current code writes 'completed'.
	legacy := newContribution(user.ID, "60.00", "paid", 2024, 30)
	if err := s.CreateContribution(legacy); err != nil {
		t.Fatalf("Failed to create legacy contribution: %v", err)
	}

	contributions, err := s.GetCompletedContributionsForUser(user.ID)
	if err != nil {
		t.Fatalf("Failed to get completed contributions: %v", err)
	}
	if len(contributions) != 1 {
		t.Fatalf("Expected the legacy row to count, got %d rows", len(contributions))
	}
	if contributions[0].Status != models.ContributionCompleted {
		t.Errorf("Expected legacy status to normalize to completed, got %s", contributions[0].Status)
	}
}

func TestSQLiteStore_LoanAndPayments(t *testing.T) {
	s := newTestStore(t, "test_store_loans.db")
	user := testUser(t, s)

	loan := &models.Loan{
		ID:               uuid.New(),
		UserID:           user.ID,
		Amount:           decimal.RequireFromString("500.00"),
		Status:           models.LoanApproved,
		DurationWeeks:    10,
		WeeklyPayment:    decimal.RequireFromString("50.00"),
		RemainingBalance: decimal.RequireFromString("500.00"),
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	if err := s.CreateLoan(loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	payment := &models.LoanPayment{
		ID:     uuid.New(),
		LoanID: loan.ID,
		UserID: user.ID,
		Amount: decimal.RequireFromString("50.00"),
		PaidAt: time.Now().UTC(),
	}
	if err := s.CreateLoanPayment(payment); err != nil {
		t.Fatalf("Failed to create payment: %v", err)
	}

	payments, err := s.GetPaymentsForLoan(loan.ID)
	if err != nil {
		t.Fatalf("Failed to get payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("Expected 1 payment, got %d", len(payments))
	}
	if !payments[0].Amount.Equal(payment.Amount) {
		t.Errorf("Expected amount %s, got %s", payment.Amount, payments[0].Amount)
	}

	approved, err := s.GetApprovedLoansForUser(user.ID)
	if err != nil {
		t.Fatalf("Failed to get approved loans: %v", err)
	}
	if len(approved) != 1 {
		t.Fatalf("Expected 1 approved loan, got %d", len(approved))
	}

	// Deleting the loan removes its payments too.
	if err := s.DeleteLoan(loan.ID); err != nil {
		t.Fatalf("Failed to delete loan: %v", err)
	}
	payments, err = s.GetPaymentsForLoan(loan.ID)
	if err != nil {
		t.Fatalf("Failed to get payments after delete: %v", err)
	}
	if len(payments) != 0 {
		t.Errorf("Expected payments to be deleted with the loan, got %d", len(payments))
	}
}
