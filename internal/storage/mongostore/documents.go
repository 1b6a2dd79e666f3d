package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"spendwise/internal/core"
)

// Every document carries a seq ObjectID assigned at insert. Sorting on
// (created_at, seq) keeps insertion order for equal timestamps, which
// BSON's millisecond dates make common.

type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	Currency     string    `bson:"currency"`
	CreatedAt    time.Time `bson:"created_at"`
}

type categoryDoc struct {
	ID        string        `bson:"_id"`
	Seq       bson.ObjectID `bson:"seq"`
	UserID    string        `bson:"user_id"`
	Name      string        `bson:"name"`
	Icon      string        `bson:"icon"`
	Color     string        `bson:"color"`
	IsCustom  bool          `bson:"is_custom"`
	CreatedAt time.Time     `bson:"created_at"`
}

type expenseDoc struct {
	ID            string        `bson:"_id"`
	Seq           bson.ObjectID `bson:"seq"`
	UserID        string        `bson:"user_id"`
	Category      string        `bson:"category"`
	AmountCents   int64         `bson:"amount_cents"`
	Date          string        `bson:"date"`
	PaymentMethod string        `bson:"payment_method"`
	Notes         *string       `bson:"notes"`
	ReceiptURL    *string       `bson:"receipt_url"`
	CreatedAt     time.Time     `bson:"created_at"`
}

type budgetDoc struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"user_id"`
	Month      int       `bson:"month"`
	Year       int       `bson:"year"`
	LimitCents int64     `bson:"limit_cents"`
	Currency   string    `bson:"currency"`
	CreatedAt  time.Time `bson:"created_at"`
}

type recurringDoc struct {
	ID            string        `bson:"_id"`
	Seq           bson.ObjectID `bson:"seq"`
	UserID        string        `bson:"user_id"`
	Category      string        `bson:"category"`
	AmountCents   int64         `bson:"amount_cents"`
	Frequency     string        `bson:"frequency"`
	NextDate      string        `bson:"next_date"`
	PaymentMethod string        `bson:"payment_method"`
	Notes         *string       `bson:"notes"`
	IsActive      bool          `bson:"is_active"`
	CreatedAt     time.Time     `bson:"created_at"`
}

func newUserDoc(u core.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Currency:     u.Currency,
		CreatedAt:    u.CreatedAt.UTC(),
	}
}

func (d userDoc) toCore() core.User {
	return core.User{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Currency:     d.Currency,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

func newCategoryDoc(c core.Category) categoryDoc {
	return categoryDoc{
		ID:        c.ID,
		Seq:       bson.NewObjectID(),
		UserID:    c.UserID,
		Name:      c.Name,
		Icon:      c.Icon,
		Color:     c.Color,
		IsCustom:  c.IsCustom,
		CreatedAt: c.CreatedAt.UTC(),
	}
}

func (d categoryDoc) toCore() core.Category {
	return core.Category{
		ID:        d.ID,
		UserID:    d.UserID,
		Name:      d.Name,
		Icon:      d.Icon,
		Color:     d.Color,
		IsCustom:  d.IsCustom,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func newExpenseDoc(e core.Expense) expenseDoc {
	return expenseDoc{
		ID:            e.ID,
		Seq:           bson.NewObjectID(),
		UserID:        e.UserID,
		Category:      e.Category,
		AmountCents:   e.Amount.Cents,
		Date:          e.Date,
		PaymentMethod: e.PaymentMethod,
		Notes:         e.Notes,
		ReceiptURL:    e.ReceiptURL,
		CreatedAt:     e.CreatedAt.UTC(),
	}
}

func (d expenseDoc) toCore() core.Expense {
	return core.Expense{
		ID:            d.ID,
		UserID:        d.UserID,
		Category:      d.Category,
		Amount:        core.Money{Cents: d.AmountCents},
		Date:          d.Date,
		PaymentMethod: d.PaymentMethod,
		Notes:         d.Notes,
		ReceiptURL:    d.ReceiptURL,
		CreatedAt:     d.CreatedAt.UTC(),
	}
}

func (d budgetDoc) toCore() core.Budget {
	return core.Budget{
		ID:        d.ID,
		UserID:    d.UserID,
		Month:     d.Month,
		Year:      d.Year,
		Limit:     core.Money{Cents: d.LimitCents},
		Currency:  d.Currency,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func newRecurringDoc(r core.RecurringExpense) recurringDoc {
	return recurringDoc{
		ID:            r.ID,
		Seq:           bson.NewObjectID(),
		UserID:        r.UserID,
		Category:      r.Category,
		AmountCents:   r.Amount.Cents,
		Frequency:     string(r.Frequency),
		NextDate:      r.NextDate,
		PaymentMethod: r.PaymentMethod,
		Notes:         r.Notes,
		IsActive:      r.IsActive,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

func (d recurringDoc) toCore() core.RecurringExpense {
	return core.RecurringExpense{
		ID:            d.ID,
		UserID:        d.UserID,
		Category:      d.Category,
		Amount:        core.Money{Cents: d.AmountCents},
		Frequency:     core.Frequency(d.Frequency),
		NextDate:      d.NextDate,
		PaymentMethod: d.PaymentMethod,
		Notes:         d.Notes,
		IsActive:      d.IsActive,
		CreatedAt:     d.CreatedAt.UTC(),
	}
}
