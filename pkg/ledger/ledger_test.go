package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/kamauw/familyholdings/pkg/models"
	"github.com/kamauw/familyholdings/pkg/store"
	"github.com/shopspring/decimal"
)

func TestRequestLoanDerivesWeeklyPayment(t *testing.T) {
	m := NewMockStore()
	l := NewLedger(m)
	user := seedUser(m, "75")

	loan, err := l.RequestLoan(user.ID, dec("1000.00"), 3, "school fees")
	if err != nil {
		t.Fatalf("Failed to request loan: %v", err)
	}

	if loan.Status != models.LoanPending {
		t.Errorf("Expected status pending, got %s", loan.Status)
	}
	if !loan.WeeklyPayment.Equal(dec("333.33")) {
		t.Errorf("Expected weekly payment 333.33, got %s", loan.WeeklyPayment)
	}
	if !loan.RemainingBalance.Equal(loan.Amount) {
		t.Errorf("Expected remaining balance to start at principal, got %s", loan.RemainingBalance)
	}
}

func TestRequestLoanRejectsBadInput(t *testing.T) {
	m := NewMockStore()
	l := NewLedger(m)
	user := seedUser(m, "75")

	if _, err := l.RequestLoan(user.ID, decimal.Zero, 3, ""); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}
	if _, err := l.RequestLoan(user.ID, dec("100.00"), 0, ""); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("Expected ErrInvalidDuration, got %v", err)
	}
}

func TestApproveLoanUpdatesDerivedFields(t *testing.T) {
	m := NewMockStore()
	l := NewLedger(m)
	user := seedUser(m, "75")
	seedContribution(m, user.ID, "400.00", models.ContributionCompleted, 2026, 1)

	loan, _ := l.RequestLoan(user.ID, dec("300.00"), 10, "")
	approved, err := l.ApproveLoan(loan.ID)
	if err != nil {
		t.Fatalf("Failed to approve loan: %v", err)
	}

	if approved.Status != models.LoanApproved {
		t.Errorf("Expected status approved, got %s", approved.Status)
	}
	if approved.ApprovedAt == nil {
		t.Error("Expected approved_at to be set")
	}

	persisted, _ := m.GetUser(user.ID)
	if !persisted.CurrentLoanBalance.Equal(dec("300.00")) {
		t.Errorf("Expected loan balance 300.00, got %s", persisted.CurrentLoanBalance)
	}
	if !persisted.BorrowingLimit.Equal(dec("300.00")) {
		t.Errorf("Expected borrowing limit 300.00, got %s", persisted.BorrowingLimit)
	}

	// Approving twice must fail.
	if _, err := l.ApproveLoan(loan.ID); !errors.Is(err, ErrLoanNotPending) {
		t.Errorf("Expected ErrLoanNotPending, got %v", err)
	}
}

func TestRejectLoan(t *testing.T) {
	m := NewMockStore()
	l := NewLedger(m)
	user := seedUser(m, "75")

	loan, _ := l.RequestLoan(user.ID, dec("100.00"), 4, "")
	rejected, err := l.RejectLoan(loan.ID)
	if err != nil {
		t.Fatalf("Failed to reject loan: %v", err)
	}
	if rejected.Status != models.LoanRejected {
		t.Errorf("Expected status rejected, got %s", rejected.Status)
	}
	if rejected.RejectedAt == nil {
		t.Error("Expected rejected_at to be set")
	}
}

func TestRecordPaymentClosesLoan(t *testing.T) {
	m := NewMockStore()
	l := NewLedger(m)
	user := seedUser(m, "75")
	seedContribution(m, user.ID, "1000.00", models.ContributionCompleted, 2026, 1)

	loan, _ := l.RequestLoan(user.ID, dec("300.00"), 10, "")
	l.ApproveLoan(loan.ID)

	_, updated, err := l.RecordLoanPayment(loan.ID, dec("120.00"))
	if err != nil {
		t.Fatalf("Failed to record payment: %v", err)
	}
	if !updated.RemainingBalance.Equal(dec("180.00")) {
		t.Errorf("Expected remaining balance 180.00, got %s", updated.RemainingBalance)
	}

	_, updated, err = l.RecordLoanPayment(loan.ID, dec("180.00"))
	if err != nil {
		t.Fatalf("Failed to record final payment: %v", err)
	}
	if updated.Status != models.LoanPaid {
		t.Errorf("Expected status paid, got %s", updated.Status)
	}
	if !updated.RemainingBalance.IsZero() {
		t.Errorf("Expected remaining balance 0, got %s", updated.RemainingBalance)
	}

	payments, _ := m.GetPaymentsForLoan(loan.ID)
	if len(payments) != 2 {
		t.Errorf("Expected 2 payment records, got %d", len(payments))
	}

	persisted, _ := m.GetUser(user.ID)
	if !persisted.CurrentLoanBalance.IsZero() {
		t.Errorf("Expected profile loan balance 0 after payoff, got %s", persisted.CurrentLoanBalance)
	}

	// Paid loans accept no further payments.
	if _, _, err := l.RecordLoanPayment(loan.ID, dec("10.00")); !errors.Is(err, ErrLoanNotApproved) {
		t.Errorf("Expected ErrLoanNotApproved, got %v", err)
	}
}

func TestMarkContributionPaid(t *testing.T) {
	m := NewMockStore()
	l := NewLedger(m)
	user := seedUser(m, "75")

	c, err := l.CreateContribution(user.ID, dec("100.00"), 2026, 5, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create contribution: %v", err)
	}
	if c.Status != models.ContributionPending {
		t.Errorf("Expected status pending, got %s", c.Status)
	}

	paid, err := l.MarkContributionPaid(c.ID, decimal.Zero, "mpesa")
	if err != nil {
		t.Fatalf("Failed to mark paid: %v", err)
	}
	if paid.Status != models.ContributionCompleted {
		t.Errorf("Expected status completed, got %s", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Error("Expected paid_at to be set")
	}

	persisted, _ := m.GetUser(user.ID)
	if !persisted.TotalContributed.Equal(dec("100.00")) {
		t.Errorf("Expected total 100.00, got %s", persisted.TotalContributed)
	}
	if !persisted.BorrowingLimit.Equal(dec("75.00")) {
		t.Errorf("Expected limit 75.00, got %s", persisted.BorrowingLimit)
	}

	if _, err := l.MarkContributionPaid(c.ID, decimal.Zero, ""); !errors.Is(err, ErrContributionAlreadyPaid) {
		t.Errorf("Expected ErrContributionAlreadyPaid, got %v", err)
	}
}

func TestCreateContributionDuplicatePeriod(t *testing.T) {
	m := NewMockStore()
	l := NewLedger(m)
	user := seedUser(m, "75")

	if _, err := l.CreateContribution(user.ID, dec("100.00"), 2026, 7, time.Now().UTC()); err != nil {
		t.Fatalf("Failed to create contribution: %v", err)
	}
	_, err := l.CreateContribution(user.ID, dec("50.00"), 2026, 7, time.Now().UTC())
	if !errors.Is(err, store.ErrDuplicatePeriod) {
		t.Errorf("Expected ErrDuplicatePeriod, got %v", err)
	}
}

func TestDeleteContributionRecomputes(t *testing.T) {
	m := NewMockStore()
	l := NewLedger(m)
	user := seedUser(m, "75")

	c, _ := l.CreateContribution(user.ID, dec("100.00"), 2026, 9, time.Now().UTC())
	l.MarkContributionPaid(c.ID, decimal.Zero, "")

	if err := l.DeleteContribution(c.ID); err != nil {
		t.Fatalf("Failed to delete contribution: %v", err)
	}
	persisted, _ := m.GetUser(user.ID)
	if !persisted.TotalContributed.IsZero() {
		t.Errorf("Expected total 0 after delete, got %s", persisted.TotalContributed)
	}
}

func TestReconcileLoanFromPayments(t *testing.T) {
	m := NewMockStore()
	l := NewLedger(m)
	user := seedUser(m, "75")
	seedContribution(m, user.ID, "1000.00", models.ContributionCompleted, 2026, 1)

	loan, _ := l.RequestLoan(user.ID, dec("300.00"), 10, "")
	l.ApproveLoan(loan.ID)
	l.RecordLoanPayment(loan.ID, dec("100.00"))
	l.RecordLoanPayment(loan.ID, dec("100.00"))

	// Simulate drift between the payment history and the decremented column.
	drifted, _ := m.GetLoan(loan.ID)
	drifted.RemainingBalance = dec("130.00")
	m.UpdateLoan(drifted)

	reconciled, err := l.ReconcileLoan(loan.ID)
	if err != nil {
		t.Fatalf("Failed to reconcile loan: %v", err)
	}
	if !reconciled.RemainingBalance.Equal(dec("100.00")) {
		t.Errorf("Expected reconciled balance 100.00, got %s", reconciled.RemainingBalance)
	}

	persisted, _ := m.GetUser(user.ID)
	if !persisted.CurrentLoanBalance.Equal(dec("100.00")) {
		t.Errorf("Expected profile balance 100.00, got %s", persisted.CurrentLoanBalance)
	}
}

func TestGetLoanCapacity(t *testing.T) {
	m := NewMockStore()
	l := NewLedger(m)
	user := seedUser(m, "75")
	seedContribution(m, user.ID, "1000.00", models.ContributionCompleted, 2026, 1)
	seedLoan(m, user.ID, "300.00", "300.00", models.LoanApproved)

	capacity, err := l.GetLoanCapacity(user.ID)
	if err != nil {
		t.Fatalf("Failed to get capacity: %v", err)
	}
	if !capacity.BorrowingLimit.Equal(dec("750.00")) {
		t.Errorf("Expected limit 750.00, got %s", capacity.BorrowingLimit)
	}
	if !capacity.AvailableCredit.Equal(dec("450.00")) {
		t.Errorf("Expected available 450.00, got %s", capacity.AvailableCredit)
	}
	if !capacity.LoanToContributionRatio.Equal(dec("0.3")) {
		t.Errorf("Expected ratio 0.3, got %s", capacity.LoanToContributionRatio)
	}
}

func TestGetStats(t *testing.T) {
	m := NewMockStore()
	l := NewLedger(m)
	user := seedUser(m, "75")
	user.WeeklyContribution = dec("100.00")
	user.JoinedAt = time.Now().UTC().Add(-21 * 24 * time.Hour)
	user.TotalContributed = dec("250.00")
	m.UpdateUser(user)

	stats, err := l.GetStats(user.ID)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.WeeksActive != 3 {
		t.Errorf("Expected 3 weeks active, got %d", stats.WeeksActive)
	}
	if !stats.ExpectedTotal.Equal(dec("300.00")) {
		t.Errorf("Expected expected total 300.00, got %s", stats.ExpectedTotal)
	}
	if !stats.Deficiency.Equal(dec("50.00")) {
		t.Errorf("Expected deficiency 50.00, got %s", stats.Deficiency)
	}
}
