package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"spendwise/internal/core"
)

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository implements Store on a single SQLite database file.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUserWithCategories inserts the user and its categories in one
// transaction.
func (r *SQLiteRepository) CreateUserWithCategories(ctx context.Context, u core.User, cats []core.Category) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, currency, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Currency, formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user %s: %w", u.Email, core.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	for _, c := range cats {
		if err := insertCategory(ctx, tx, c); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}

	slog.InfoContext(ctx, "User registered in SQLite", "user_id", u.ID, "categories", len(cats))
	return nil
}

const userColumns = `id, username, email, password_hash, currency, created_at`

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

const categoryColumns = `id, user_id, name, icon, color, is_custom, created_at`

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string, limit int) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? ORDER BY created_at, rowid LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	cats := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	return insertCategory(ctx, r.db, c)
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, notFound(err))
	}
	return c, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	return checkAffected("delete category", id, res, err)
}

const expenseColumns = `id, user_id, category, amount_cents, date, payment_method, notes, receipt_url, created_at`

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Category, e.Amount.Cents, e.Date, e.PaymentMethod,
		nullString(e.Notes), nullString(e.ReceiptURL), formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string, limit int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? ORDER BY created_at, rowid LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, notFound(err))
	}
	return e, nil
}

// UpdateExpense overwrites the mutable fields of the stored expense.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET category = ?, amount_cents = ?, date = ?, payment_method = ?, notes = ?, receipt_url = ?
		 WHERE id = ? AND user_id = ?`,
		e.Category, e.Amount.Cents, e.Date, e.PaymentMethod, nullString(e.Notes), nullString(e.ReceiptURL),
		e.ID, e.UserID)
	return checkAffected("update expense", e.ID, res, err)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	return checkAffected("delete expense", id, res, err)
}

const budgetColumns = `id, user_id, month, year, limit_cents, currency, created_at`

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, month, year) DO UPDATE SET
		     limit_cents = excluded.limit_cents,
		     currency = excluded.currency
		 RETURNING `+budgetColumns,
		b.ID, b.UserID, b.Month, b.Year, b.Limit.Cents, b.Currency, formatTime(b.CreatedAt))
	stored, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget %d/%d: %w", b.Month, b.Year, err)
	}
	return stored, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID string, month, year int) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND month = ? AND year = ?`,
		userID, month, year)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %d/%d: %w", month, year, notFound(err))
	}
	return b, nil
}

const recurringColumns = `id, user_id, category, amount_cents, frequency, next_date, payment_method, notes, is_active, created_at`

func (r *SQLiteRepository) CreateRecurring(ctx context.Context, re core.RecurringExpense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_expenses (`+recurringColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		re.ID, re.UserID, re.Category, re.Amount.Cents, string(re.Frequency), re.NextDate,
		re.PaymentMethod, nullString(re.Notes), re.IsActive, formatTime(re.CreatedAt))
	if err != nil {
		return fmt.Errorf("create recurring expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListRecurring(ctx context.Context, userID string, limit int) ([]core.RecurringExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses WHERE user_id = ? ORDER BY created_at, rowid LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	defer rows.Close()

	out := []core.RecurringExpense{}
	for rows.Next() {
		var (
			re        core.RecurringExpense
			freq      string
			notes     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&re.ID, &re.UserID, &re.Category, &re.Amount.Cents, &freq, &re.NextDate,
			&re.PaymentMethod, &notes, &re.IsActive, &createdAt); err != nil {
			return nil, fmt.Errorf("scan recurring expense: %w", err)
		}
		re.Frequency = core.Frequency(freq)
		re.Notes = stringPtr(notes)
		if re.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteRecurring(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_expenses WHERE id = ? AND user_id = ?`, id, userID)
	return checkAffected("delete recurring expense", id, res, err)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func insertCategory(ctx context.Context, db execer, c core.Category) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Icon, c.Color, c.IsCustom, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert category %q: %w", c.Name, err)
	}
	return nil
}

func scanUser(row scanner) (core.User, error) {
	var (
		u         core.User
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Currency, &createdAt); err != nil {
		return core.User{}, notFound(err)
	}
	var err error
	u.CreatedAt, err = parseTime(createdAt)
	return u, err
}

func scanCategory(row scanner) (core.Category, error) {
	var (
		c         core.Category
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Icon, &c.Color, &c.IsCustom, &createdAt); err != nil {
		return core.Category{}, err
	}
	var err error
	c.CreatedAt, err = parseTime(createdAt)
	return c, err
}

func scanExpense(row scanner) (core.Expense, error) {
	var (
		e          core.Expense
		notes      sql.NullString
		receiptURL sql.NullString
		createdAt  string
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Category, &e.Amount.Cents, &e.Date, &e.PaymentMethod,
		&notes, &receiptURL, &createdAt); err != nil {
		return core.Expense{}, err
	}
	e.Notes = stringPtr(notes)
	e.ReceiptURL = stringPtr(receiptURL)
	var err error
	e.CreatedAt, err = parseTime(createdAt)
	return e, err
}

func scanBudget(row scanner) (core.Budget, error) {
	var (
		b         core.Budget
		createdAt string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Month, &b.Year, &b.Limit.Cents, &b.Currency, &createdAt); err != nil {
		return core.Budget{}, err
	}
	var err error
	b.CreatedAt, err = parseTime(createdAt)
	return b, err
}

// notFound maps sql.ErrNoRows onto core.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

func checkAffected(op, id string, res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: rows affected: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, core.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
