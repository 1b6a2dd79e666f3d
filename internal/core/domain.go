package core

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	DefaultCurrency = "USD"
	dateLayout      = "2006-01-02"
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
)

type (
	Frequency string

	User struct {
		ID           string    `json:"id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		Currency     string    `json:"currency"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Category struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		Name      string    `json:"name"`
		Icon      string    `json:"icon"`
		Color     string    `json:"color"`
		IsCustom  bool      `json:"is_custom"`
		CreatedAt time.Time `json:"created_at"`
	}

	Expense struct {
		ID            string    `json:"id"`
		UserID        string    `json:"user_id"`
		Category      string    `json:"category"`
		Amount        Money     `json:"amount"`
		Date          string    `json:"date"`
		PaymentMethod string    `json:"payment_method"`
		Notes         *string   `json:"notes"`
		ReceiptURL    *string   `json:"receipt_url"`
		CreatedAt     time.Time `json:"created_at"`
	}

	// ExpensePatch holds the fields of a partial update. Nil fields are left
	// untouched.
	ExpensePatch struct {
		Category      *string `json:"category"`
		Amount        *Money  `json:"amount"`
		Date          *string `json:"date"`
		PaymentMethod *string `json:"payment_method"`
		Notes         *string `json:"notes"`
		ReceiptURL    *string `json:"receipt_url"`
	}

	Budget struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		Month     int       `json:"month"`
		Year      int       `json:"year"`
		Limit     Money     `json:"limit"`
		Currency  string    `json:"currency"`
		CreatedAt time.Time `json:"created_at"`
	}

	RecurringExpense struct {
		ID            string    `json:"id"`
		UserID        string    `json:"user_id"`
		Category      string    `json:"category"`
		Amount        Money     `json:"amount"`
		Frequency     Frequency `json:"frequency"`
		NextDate      string    `json:"next_date"`
		PaymentMethod string    `json:"payment_method"`
		Notes         *string   `json:"notes"`
		IsActive      bool      `json:"is_active"`
		CreatedAt     time.Time `json:"created_at"`
	}
)

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.NewString()
}

// Now is the clock used for created_at stamps.
var Now = func() time.Time {
	return time.Now().UTC()
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// NormalizeEmail trims and lower-cases an address and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", Validationf("invalid email address")
	}
	return email, nil
}

// NormalizeCurrency upper-cases a three-letter code, defaulting to USD.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency, nil
	}
	if len(code) != 3 {
		return "", Validationf("currency must be a 3-letter code")
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", Validationf("currency must be a 3-letter code")
		}
	}
	return code, nil
}

func ValidatePassword(password string) error {
	if password == "" {
		return Validationf("password is required")
	}
	if len(password) > maxPasswordBytes {
		return Validationf("password too long (max %d bytes)", maxPasswordBytes)
	}
	return nil
}

// ValidateDate accepts an ISO calendar date, optionally followed by a time
// part ("2025-01-31" or "2025-01-31T10:00:00").
func ValidateDate(field, value string) error {
	if len(value) < len(dateLayout) {
		return Validationf("%s must be an ISO date (YYYY-MM-DD)", field)
	}
	if _, err := time.Parse(dateLayout, value[:len(dateLayout)]); err != nil {
		return Validationf("%s must be an ISO date (YYYY-MM-DD)", field)
	}
	return nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return Validationf("%s is required", field)
	}
	return nil
}

func (u User) Validate() error {
	if err := required("username", u.Username); err != nil {
		return err
	}
	if len(u.Username) > 100 {
		return Validationf("username too long (max 100 characters)")
	}
	return nil
}

func (c Category) Validate() error {
	if err := required("name", c.Name); err != nil {
		return err
	}
	if len(c.Name) > 100 {
		return Validationf("name too long (max 100 characters)")
	}
	return nil
}

func (e Expense) Validate() error {
	if err := required("category", e.Category); err != nil {
		return err
	}
	if err := ValidateDate("date", e.Date); err != nil {
		return err
	}
	if err := required("payment_method", e.PaymentMethod); err != nil {
		return err
	}
	if e.Amount.Cents < 0 {
		return Validationf("amount must not be negative")
	}
	return nil
}

// Apply overwrites the fields of e that are set in p.
func (p ExpensePatch) Apply(e *Expense) {
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.PaymentMethod != nil {
		e.PaymentMethod = *p.PaymentMethod
	}
	if p.Notes != nil {
		e.Notes = p.Notes
	}
	if p.ReceiptURL != nil {
		e.ReceiptURL = p.ReceiptURL
	}
}

// ValidatePeriod checks a budget month/year pair.
func ValidatePeriod(month, year int) error {
	if month < 1 || month > 12 {
		return Validationf("month must be between 1 and 12")
	}
	if year < 1 || year > 9999 {
		return Validationf("year must be between 1 and 9999")
	}
	return nil
}

func (b Budget) Validate() error {
	if err := ValidatePeriod(b.Month, b.Year); err != nil {
		return err
	}
	if b.Limit.Cents <= 0 {
		return Validationf("limit must be positive")
	}
	return nil
}

func (r RecurringExpense) Validate() error {
	if err := required("category", r.Category); err != nil {
		return err
	}
	if !r.Frequency.Valid() {
		return Validationf("frequency must be one of daily, weekly, monthly, yearly")
	}
	if err := ValidateDate("next_date", r.NextDate); err != nil {
		return err
	}
	if err := required("payment_method", r.PaymentMethod); err != nil {
		return err
	}
	if r.Amount.Cents < 0 {
		return Validationf("amount must not be negative")
	}
	return nil
}
