package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kamauw/familyholdings/pkg/models"
	"github.com/shopspring/decimal"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	_, err = db.Exec("PRAGMA journal_mode = WAL;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	log.Println("Database connection established and schema initialized.")
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		full_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		weekly_contribution TEXT NOT NULL DEFAULT '0',
		borrow_limit_percent TEXT NOT NULL DEFAULT '75',
		total_contributed TEXT NOT NULL DEFAULT '0',
		borrowing_limit TEXT NOT NULL DEFAULT '0',
		current_loan_balance TEXT NOT NULL DEFAULT '0',
		joined_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS contributions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		period_year INTEGER NOT NULL,
		period_week INTEGER NOT NULL,
		due_date DATETIME NOT NULL,
		paid_at DATETIME,
		method TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY(user_id) REFERENCES profiles(id),
		UNIQUE(user_id, period_year, period_week)
	);
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		duration_weeks INTEGER NOT NULL,
		weekly_payment TEXT NOT NULL,
		remaining_balance TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		approved_at DATETIME,
		rejected_at DATETIME,
		FOREIGN KEY(user_id) REFERENCES profiles(id)
	);
	CREATE TABLE IF NOT EXISTS loan_payments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid_at DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// isUniqueConstraintError checks whether err is a UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// parseMoney parses a TEXT monetary column. Malformed values are reported to
// the caller, which decides between skipping the row and failing.
func parseMoney(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(raw)
}

// moneyOrZero parses a TEXT monetary column, logging and substituting zero on
// malformed values. Used for the derived profile fields, which are caches
// re-derivable from ledger rows.
func moneyOrZero(table, id, column, raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		log.Printf("store: %s %s has malformed %s %q, treating as zero", table, id, column, raw)
		return decimal.Zero
	}
	return d
}

// --- users ---

func (s *SQLiteStore) CreateUser(user *models.User) error {
	_, err := s.db.Exec(
		`INSERT INTO profiles (id, email, full_name, role, weekly_contribution, borrow_limit_percent, total_contributed, borrowing_limit, current_loan_balance, joined_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID.String(), user.Email, user.FullName, string(user.Role), user.WeeklyContribution,
		user.BorrowLimitPercent, user.TotalContributed, user.BorrowingLimit, user.CurrentLoanBalance,
		user.JoinedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const userColumns = `id, email, full_name, role, weekly_contribution, borrow_limit_percent, total_contributed, borrowing_limit, current_loan_balance, joined_at, updated_at`

func (s *SQLiteStore) scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	var user models.User
	var idStr, roleStr string
	var weekly, pct, total, limit, balance string
	var joined, updated time.Time

	err := row.Scan(&idStr, &user.Email, &user.FullName, &roleStr, &weekly, &pct, &total, &limit, &balance, &joined, &updated)
	if err != nil {
		return nil, err
	}
	user.ID = uuid.MustParse(idStr)
	user.Role = models.Role(roleStr)
	user.WeeklyContribution = moneyOrZero("profile", idStr, "weekly_contribution", weekly)
	user.BorrowLimitPercent = moneyOrZero("profile", idStr, "borrow_limit_percent", pct)
	user.TotalContributed = moneyOrZero("profile", idStr, "total_contributed", total)
	user.BorrowingLimit = moneyOrZero("profile", idStr, "borrowing_limit", limit)
	user.CurrentLoanBalance = moneyOrZero("profile", idStr, "current_loan_balance", balance)
	user.JoinedAt = joined
	user.UpdatedAt = updated
	return &user, nil
}

func (s *SQLiteStore) GetUser(id uuid.UUID) (*models.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM profiles WHERE id = ?`, id.String())
	user, err := s.scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) UpdateUser(user *models.User) error {
	result, err := s.db.Exec(
		`UPDATE profiles SET email = ?, full_name = ?, role = ?, weekly_contribution = ?, borrow_limit_percent = ?, updated_at = ? WHERE id = ?`,
		user.Email, user.FullName, string(user.Role), user.WeeklyContribution, user.BorrowLimitPercent, user.UpdatedAt, user.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRowsAffected(result, ErrUserNotFound)
}

func (s *SQLiteStore) UpdateUserDerived(id uuid.UUID, totalContributed, borrowingLimit, currentLoanBalance decimal.Decimal) error {
	result, err := s.db.Exec(
		`UPDATE profiles SET total_contributed = ?, borrowing_limit = ?, current_loan_balance = ?, updated_at = ? WHERE id = ?`,
		totalContributed, borrowingLimit, currentLoanBalance, time.Now().UTC(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update derived fields: %w", err)
	}
	return requireRowsAffected(result, ErrUserNotFound)
}

func (s *SQLiteStore) GetAllUsers() ([]*models.User, error) {
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM profiles ORDER BY joined_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := s.scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return users, nil
}

// --- contributions ---

const contributionColumns = `id, user_id, amount, status, period_year, period_week, due_date, paid_at, method, created_at`

func (s *SQLiteStore) CreateContribution(c *models.Contribution) error {
	_, err := s.db.Exec(
		`INSERT INTO contributions (`+contributionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.UserID.String(), c.Amount, string(c.Status), c.PeriodYear, c.PeriodWeek,
		c.DueDate, c.PaidAt, c.Method, c.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicatePeriod
		}
		return fmt.Errorf("failed to create contribution: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateContributionIfVacant(c *models.Contribution) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO contributions (`+contributionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.UserID.String(), c.Amount, string(c.Status), c.PeriodYear, c.PeriodWeek,
		c.DueDate, c.PaidAt, c.Method, c.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert contribution: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetContribution(id uuid.UUID) (*models.Contribution, error) {
	row := s.db.QueryRow(`SELECT `+contributionColumns+` FROM contributions WHERE id = ?`, id.String())
	c, err := scanContribution(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrContributionNotFound
		}
		return nil, fmt.Errorf("failed to get contribution: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) UpdateContribution(c *models.Contribution) error {
	result, err := s.db.Exec(
		`UPDATE contributions SET amount = ?, status = ?, due_date = ?, paid_at = ?, method = ? WHERE id = ?`,
		c.Amount, string(c.Status), c.DueDate, c.PaidAt, c.Method, c.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update contribution: %w", err)
	}
	return requireRowsAffected(result, ErrContributionNotFound)
}

func (s *SQLiteStore) DeleteContribution(id uuid.UUID) error {
	result, err := s.db.Exec(`DELETE FROM contributions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete contribution: %w", err)
	}
	return requireRowsAffected(result, ErrContributionNotFound)
}

func (s *SQLiteStore) GetContributionsForUser(userID uuid.UUID) ([]*models.Contribution, error) {
	rows, err := s.db.Query(`SELECT `+contributionColumns+` FROM contributions WHERE user_id = ? ORDER BY period_year ASC, period_week ASC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get contributions for user %s: %w", userID, err)
	}
	defer rows.Close()
	return scanContributions(rows)
}

func (s *SQLiteStore) GetCompletedContributionsForUser(userID uuid.UUID) ([]*models.Contribution, error) {
	// 'paid' is a legacy status value for the same state; both must count.
	rows, err := s.db.Query(`SELECT `+contributionColumns+` FROM contributions WHERE user_id = ? AND status IN ('completed', 'paid')`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get completed contributions for user %s: %w", userID, err)
	}
	defer rows.Close()
	return scanContributions(rows)
}

func (s *SQLiteStore) GetAllContributions() ([]*models.Contribution, error) {
	rows, err := s.db.Query(`SELECT ` + contributionColumns + ` FROM contributions`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all contributions: %w", err)
	}
	defer rows.Close()
	return scanContributions(rows)
}

func (s *SQLiteStore) HasContributionForPeriod(userID uuid.UUID, year, week int) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM contributions WHERE user_id = ? AND period_year = ? AND period_week = ?`,
		userID.String(), year, week).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check contribution period: %w", err)
	}
	return n > 0, nil
}

func scanContribution(row interface{ Scan(dest ...any) error }) (*models.Contribution, error) {
	var c models.Contribution
	var idStr, userIDStr, amountStr, statusStr string
	var due, created time.Time
	var paidAt sql.NullTime

	err := row.Scan(&idStr, &userIDStr, &amountStr, &statusStr, &c.PeriodYear, &c.PeriodWeek, &due, &paidAt, &c.Method, &created)
	if err != nil {
		return nil, err
	}
	amount, err := parseMoney(amountStr)
	if err != nil {
		return nil, fmt.Errorf("contribution %s has malformed amount %q: %w", idStr, amountStr, err)
	}
	c.ID = uuid.MustParse(idStr)
	c.UserID = uuid.MustParse(userIDStr)
	c.Amount = amount
	c.Status = models.NormalizeContributionStatus(statusStr)
	c.DueDate = due
	c.CreatedAt = created
	if paidAt.Valid {
		c.PaidAt = &paidAt.Time
	}
	return &c, nil
}

// scanContributions skips rows whose monetary fields cannot be parsed; a bad
// row contributes nothing to downstream aggregates rather than aborting the
// whole query.
func scanContributions(rows *sql.Rows) ([]*models.Contribution, error) {
	var contributions []*models.Contribution
	for rows.Next() {
		var c models.Contribution
		var idStr, userIDStr, amountStr, statusStr string
		var due, created time.Time
		var paidAt sql.NullTime
		if err := rows.Scan(&idStr, &userIDStr, &amountStr, &statusStr, &c.PeriodYear, &c.PeriodWeek, &due, &paidAt, &c.Method, &created); err != nil {
			return nil, fmt.Errorf("failed to scan contribution row: %w", err)
		}
		amount, err := parseMoney(amountStr)
		if err != nil {
			log.Printf("store: skipping contribution %s with malformed amount %q", idStr, amountStr)
			continue
		}
		c.ID = uuid.MustParse(idStr)
		c.UserID = uuid.MustParse(userIDStr)
		c.Amount = amount
		c.Status = models.NormalizeContributionStatus(statusStr)
		c.DueDate = due
		c.CreatedAt = created
		if paidAt.Valid {
			c.PaidAt = &paidAt.Time
		}
		contributions = append(contributions, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return contributions, nil
}

// --- loans ---

const loanColumns = `id, user_id, amount, status, reason, duration_weeks, weekly_payment, remaining_balance, created_at, updated_at, approved_at, rejected_at`

func (s *SQLiteStore) CreateLoan(loan *models.Loan) error {
	_, err := s.db.Exec(
		`INSERT INTO loans (`+loanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.UserID.String(), loan.Amount, string(loan.Status), loan.Reason,
		loan.DurationWeeks, loan.WeeklyPayment, loan.RemainingBalance,
		loan.CreatedAt, loan.UpdatedAt, loan.ApprovedAt, loan.RejectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetLoan(id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String())
	loan, err := scanLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

func (s *SQLiteStore) UpdateLoan(loan *models.Loan) error {
	result, err := s.db.Exec(
		`UPDATE loans SET status = ?, reason = ?, weekly_payment = ?, remaining_balance = ?, updated_at = ?, approved_at = ?, rejected_at = ? WHERE id = ?`,
		string(loan.Status), loan.Reason, loan.WeeklyPayment, loan.RemainingBalance,
		loan.UpdatedAt, loan.ApprovedAt, loan.RejectedAt, loan.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return requireRowsAffected(result, ErrLoanNotFound)
}

// DeleteLoan removes a loan and its payments within a transaction.
func (s *SQLiteStore) DeleteLoan(id uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM loan_payments WHERE loan_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete associated payments: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM loans WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	if err := requireRowsAffected(result, ErrLoanNotFound); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetLoansForUser(userID uuid.UUID) ([]*models.Loan, error) {
	rows, err := s.db.Query(`SELECT `+loanColumns+` FROM loans WHERE user_id = ? ORDER BY created_at ASC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get loans for user %s: %w", userID, err)
	}
	defer rows.Close()
	return scanLoans(rows)
}

func (s *SQLiteStore) GetApprovedLoansForUser(userID uuid.UUID) ([]*models.Loan, error) {
	rows, err := s.db.Query(`SELECT `+loanColumns+` FROM loans WHERE user_id = ? AND status = 'approved'`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get approved loans for user %s: %w", userID, err)
	}
	defer rows.Close()
	return scanLoans(rows)
}

func (s *SQLiteStore) GetAllLoans() ([]*models.Loan, error) {
	rows, err := s.db.Query(`SELECT ` + loanColumns + ` FROM loans`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all loans: %w", err)
	}
	defer rows.Close()
	return scanLoans(rows)
}

func scanLoan(row interface{ Scan(dest ...any) error }) (*models.Loan, error) {
	var loan models.Loan
	var idStr, userIDStr, amountStr, statusStr, weeklyStr, remainingStr string
	var created, updated time.Time
	var approvedAt, rejectedAt sql.NullTime

	err := row.Scan(&idStr, &userIDStr, &amountStr, &statusStr, &loan.Reason, &loan.DurationWeeks,
		&weeklyStr, &remainingStr, &created, &updated, &approvedAt, &rejectedAt)
	if err != nil {
		return nil, err
	}
	amount, err := parseMoney(amountStr)
	if err != nil {
		return nil, fmt.Errorf("loan %s has malformed amount %q: %w", idStr, amountStr, err)
	}
	remaining, err := parseMoney(remainingStr)
	if err != nil {
		return nil, fmt.Errorf("loan %s has malformed remaining_balance %q: %w", idStr, remainingStr, err)
	}
	loan.ID = uuid.MustParse(idStr)
	loan.UserID = uuid.MustParse(userIDStr)
	loan.Amount = amount
	loan.Status = models.LoanStatus(statusStr)
	loan.WeeklyPayment = moneyOrZero("loan", idStr, "weekly_payment", weeklyStr)
	loan.RemainingBalance = remaining
	loan.CreatedAt = created
	loan.UpdatedAt = updated
	if approvedAt.Valid {
		loan.ApprovedAt = &approvedAt.Time
	}
	if rejectedAt.Valid {
		loan.RejectedAt = &rejectedAt.Time
	}
	return &loan, nil
}

// scanLoans skips rows with malformed monetary fields, same policy as
// scanContributions.
func scanLoans(rows *sql.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		var loan models.Loan
		var idStr, userIDStr, amountStr, statusStr, weeklyStr, remainingStr string
		var created, updated time.Time
		var approvedAt, rejectedAt sql.NullTime
		if err := rows.Scan(&idStr, &userIDStr, &amountStr, &statusStr, &loan.Reason, &loan.DurationWeeks,
			&weeklyStr, &remainingStr, &created, &updated, &approvedAt, &rejectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		amount, err := parseMoney(amountStr)
		if err != nil {
			log.Printf("store: skipping loan %s with malformed amount %q", idStr, amountStr)
			continue
		}
		remaining, err := parseMoney(remainingStr)
		if err != nil {
			log.Printf("store: skipping loan %s with malformed remaining_balance %q", idStr, remainingStr)
			continue
		}
		loan.ID = uuid.MustParse(idStr)
		loan.UserID = uuid.MustParse(userIDStr)
		loan.Amount = amount
		loan.Status = models.LoanStatus(statusStr)
		loan.WeeklyPayment = moneyOrZero("loan", idStr, "weekly_payment", weeklyStr)
		loan.RemainingBalance = remaining
		loan.CreatedAt = created
		loan.UpdatedAt = updated
		if approvedAt.Valid {
			loan.ApprovedAt = &approvedAt.Time
		}
		if rejectedAt.Valid {
			loan.RejectedAt = &rejectedAt.Time
		}
		loans = append(loans, &loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// --- loan payments ---

func (s *SQLiteStore) CreateLoanPayment(p *models.LoanPayment) error {
	_, err := s.db.Exec(
		`INSERT INTO loan_payments (id, loan_id, user_id, amount, paid_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID.String(), p.LoanID.String(), p.UserID.String(), p.Amount, p.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan payment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetPaymentsForLoan(loanID uuid.UUID) ([]*models.LoanPayment, error) {
	rows, err := s.db.Query(`SELECT id, loan_id, user_id, amount, paid_at FROM loan_payments WHERE loan_id = ? ORDER BY paid_at ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var payments []*models.LoanPayment
	for rows.Next() {
		var p models.LoanPayment
		var idStr, loanIDStr, userIDStr, amountStr string
		var paidAt time.Time
		if err := rows.Scan(&idStr, &loanIDStr, &userIDStr, &amountStr, &paidAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan payment row: %w", err)
		}
		amount, err := parseMoney(amountStr)
		if err != nil {
			log.Printf("store: skipping loan payment %s with malformed amount %q", idStr, amountStr)
			continue
		}
		p.ID = uuid.MustParse(idStr)
		p.LoanID = uuid.MustParse(loanIDStr)
		p.UserID = uuid.MustParse(userIDStr)
		p.Amount = amount
		p.PaidAt = paidAt
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return payments, nil
}

func requireRowsAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
