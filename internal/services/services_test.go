package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"spendwise/internal/amqp"
	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/export"
	"spendwise/internal/metrics"
	"spendwise/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.Event
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev *amqp.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type ServicesTestSuite struct {
	suite.Suite
	ctx   context.Context
	repo  *storage.SQLiteRepository
	pub   *recordingPublisher
	svc   *Services
	user  core.User
	token string
}

func (s *ServicesTestSuite) SetupTest() {
	repo, err := storage.NewSQLiteRepository(filepath.Join(s.T().TempDir(), "svc.db"))
	s.Require().NoError(err)
	s.repo = repo
	s.ctx = context.Background()
	s.pub = &recordingPublisher{}
	s.svc = New(Deps{
		Store:     repo,
		Tokens:    auth.NewTokenIssuer("test-secret", time.Hour),
		Publisher: s.pub,
		Metrics:   metrics.New(),
	})

	s.user, s.token, err = s.svc.Auth.Register(s.ctx, RegisterInput{
		Username: "alice",
		Email:    "  Alice@Example.com ",
		Password: "s3cret",
	})
	s.Require().NoError(err)
}

func (s *ServicesTestSuite) TearDownTest() {
	s.repo.Close()
}

func TestServicesTestSuite(t *testing.T) {
	suite.Run(t, new(ServicesTestSuite))
}

func money(cents int64) *core.Money {
	return &core.Money{Cents: cents}
}

func (s *ServicesTestSuite) addExpense(category string, cents int64, date string) core.Expense {
	e, err := s.svc.Expenses.Create(s.ctx, s.user.ID, ExpenseInput{
		Category:      category,
		Amount:        money(cents),
		Date:          date,
		PaymentMethod: "card",
	})
	s.Require().NoError(err)
	return e
}

func (s *ServicesTestSuite) TestRegister() {
	s.Equal("alice@example.com", s.user.Email)
	s.Equal("USD", s.user.Currency)
	s.NotEmpty(s.user.PasswordHash)
	s.NotEqual("s3cret", s.user.PasswordHash)

	sub, err := s.svc.Auth.Authenticate(s.ctx, s.token)
	s.Require().NoError(err)
	s.Equal(s.user.ID, sub)

	cats, err := s.svc.Categories.List(s.ctx, s.user.ID)
	s.Require().NoError(err)
	s.Require().Len(cats, 7)
	for _, c := range cats {
		s.False(c.IsCustom, c.Name)
	}
	s.Equal("Food", cats[0].Name)
	s.Equal("Other", cats[6].Name)

	s.Equal([]string{amqp.UserRegistered}, s.pub.types())
}

func (s *ServicesTestSuite) TestRegisterDuplicateEmail() {
	_, _, err := s.svc.Auth.Register(s.ctx, RegisterInput{
		Username: "other",
		Email:    "ALICE@example.com",
		Password: "x",
	})
	s.ErrorIs(err, core.ErrConflict)
	s.Equal("Email already registered", core.Message(err, ""))
}

func (s *ServicesTestSuite) TestRegisterValidation() {
	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"bad email", RegisterInput{Username: "bob", Email: "not-an-email", Password: "pw"}},
		{"empty password", RegisterInput{Username: "bob", Email: "bob@example.com"}},
		{"missing username", RegisterInput{Email: "bob@example.com", Password: "pw"}},
		{"bad currency", RegisterInput{Username: "bob", Email: "bob@example.com", Password: "pw", Currency: "euro"}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, _, err := s.svc.Auth.Register(s.ctx, tt.in)
			s.ErrorIs(err, core.ErrValidation)
		})
	}
}

func (s *ServicesTestSuite) TestLogin() {
	user, token, err := s.svc.Auth.Login(s.ctx, "alice@example.com", "s3cret")
	s.Require().NoError(err)
	s.Equal(s.user.ID, user.ID)
	s.NotEmpty(token)

	tests := []struct {
		name, email, password string
	}{
		{"wrong password", "alice@example.com", "nope"},
		{"unknown email", "nobody@example.com", "s3cret"},
		{"malformed email", "alice", "s3cret"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, _, err := s.svc.Auth.Login(s.ctx, tt.email, tt.password)
			s.ErrorIs(err, core.ErrUnauthorized)
			s.Equal("Incorrect email or password", core.Message(err, ""))
		})
	}
}

func (s *ServicesTestSuite) TestAuthenticateRejects() {
	_, err := s.svc.Auth.Authenticate(s.ctx, "")
	s.ErrorIs(err, core.ErrUnauthorized)

	_, err = s.svc.Auth.Authenticate(s.ctx, "garbage")
	s.ErrorIs(err, core.ErrUnauthorized)

	other := auth.NewTokenIssuer("another-secret", time.Hour)
	forged, err := other.Issue(s.user.ID)
	s.Require().NoError(err)
	_, err = s.svc.Auth.Authenticate(s.ctx, forged)
	s.ErrorIs(err, core.ErrUnauthorized)
}

func (s *ServicesTestSuite) TestMe() {
	me, err := s.svc.Auth.Me(s.ctx, s.user.ID)
	s.Require().NoError(err)
	s.Equal("alice", me.Username)

	_, err = s.svc.Auth.Me(s.ctx, "missing")
	s.ErrorIs(err, core.ErrNotFound)
	s.Equal("User not found", core.Message(err, ""))
}

func (s *ServicesTestSuite) TestEnsureUser() {
	in := RegisterInput{Username: "devuser", Email: "dev@example.com", Password: "password123"}

	first, token, created, err := s.svc.Auth.EnsureUser(s.ctx, in)
	s.Require().NoError(err)
	s.True(created)
	s.NotEmpty(token)

	again, _, created, err := s.svc.Auth.EnsureUser(s.ctx, in)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, again.ID)

	cats, err := s.svc.Categories.List(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Len(cats, 7)
}

func (s *ServicesTestSuite) TestCategoryLifecycle() {
	cats, err := s.svc.Categories.List(s.ctx, s.user.ID)
	s.Require().NoError(err)

	err = s.svc.Categories.Delete(s.ctx, s.user.ID, cats[0].ID)
	s.ErrorIs(err, core.ErrInvalidOperation)
	s.Equal("Cannot delete default categories", core.Message(err, ""))

	custom, err := s.svc.Categories.Create(s.ctx, s.user.ID, CategoryInput{Name: "Pets", Icon: "Dog", Color: "#000000"})
	s.Require().NoError(err)
	s.True(custom.IsCustom)

	cats, err = s.svc.Categories.List(s.ctx, s.user.ID)
	s.Require().NoError(err)
	s.Len(cats, 8)
	s.Equal("Pets", cats[7].Name)

	s.Require().NoError(s.svc.Categories.Delete(s.ctx, s.user.ID, custom.ID))
	cats, err = s.svc.Categories.List(s.ctx, s.user.ID)
	s.Require().NoError(err)
	s.Len(cats, 7)

	err = s.svc.Categories.Delete(s.ctx, s.user.ID, custom.ID)
	s.ErrorIs(err, core.ErrNotFound)

	_, err = s.svc.Categories.Create(s.ctx, s.user.ID, CategoryInput{Name: " "})
	s.ErrorIs(err, core.ErrValidation)
}

func (s *ServicesTestSuite) TestDeletingCategoryKeepsExpenses() {
	custom, err := s.svc.Categories.Create(s.ctx, s.user.ID, CategoryInput{Name: "Pets"})
	s.Require().NoError(err)
	e := s.addExpense("Pets", 1200, "2025-01-10")

	s.Require().NoError(s.svc.Categories.Delete(s.ctx, s.user.ID, custom.ID))

	got, err := s.svc.Expenses.Get(s.ctx, s.user.ID, e.ID)
	s.Require().NoError(err)
	s.Equal("Pets", got.Category)
}

func (s *ServicesTestSuite) TestExpenseCreateValidation() {
	tests := []struct {
		name string
		in   ExpenseInput
	}{
		{"missing amount", ExpenseInput{Category: "Food", Date: "2025-01-01", PaymentMethod: "card"}},
		{"missing category", ExpenseInput{Amount: money(100), Date: "2025-01-01", PaymentMethod: "card"}},
		{"bad date", ExpenseInput{Category: "Food", Amount: money(100), Date: "yesterday", PaymentMethod: "card"}},
		{"missing payment method", ExpenseInput{Category: "Food", Amount: money(100), Date: "2025-01-01"}},
		{"negative amount", ExpenseInput{Category: "Food", Amount: money(-1), Date: "2025-01-01", PaymentMethod: "card"}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.svc.Expenses.Create(s.ctx, s.user.ID, tt.in)
			s.ErrorIs(err, core.ErrValidation)
		})
	}

	zero := s.addExpense("Food", 0, "2025-01-01")
	s.Equal(int64(0), zero.Amount.Cents)
}

func (s *ServicesTestSuite) TestExpensePartialUpdate() {
	notes := "weekly shop"
	created, err := s.svc.Expenses.Create(s.ctx, s.user.ID, ExpenseInput{
		Category:      "Food",
		Amount:        money(1000),
		Date:          "2025-01-05",
		PaymentMethod: "card",
		Notes:         &notes,
	})
	s.Require().NoError(err)

	patch := core.ExpensePatch{Amount: money(2550)}
	updated, err := s.svc.Expenses.Update(s.ctx, s.user.ID, created.ID, patch)
	s.Require().NoError(err)
	s.Equal(int64(2550), updated.Amount.Cents)
	s.Equal(created.Category, updated.Category)
	s.Equal(created.Date, updated.Date)
	s.Equal(created.PaymentMethod, updated.PaymentMethod)
	s.Equal(created.Notes, updated.Notes)

	again, err := s.svc.Expenses.Update(s.ctx, s.user.ID, created.ID, patch)
	s.Require().NoError(err)
	s.Equal(updated, again)

	stored, err := s.svc.Expenses.Get(s.ctx, s.user.ID, created.ID)
	s.Require().NoError(err)
	s.Equal(updated.Amount, stored.Amount)
	s.True(created.CreatedAt.Equal(stored.CreatedAt))

	bad := "not-a-date"
	_, err = s.svc.Expenses.Update(s.ctx, s.user.ID, created.ID, core.ExpensePatch{Date: &bad})
	s.ErrorIs(err, core.ErrValidation)
}

func (s *ServicesTestSuite) TestOwnershipIsolation() {
	e := s.addExpense("Food", 500, "2025-01-02")

	mallory, _, err := s.svc.Auth.Register(s.ctx, RegisterInput{Username: "mallory", Email: "m@example.com", Password: "pw"})
	s.Require().NoError(err)

	_, err = s.svc.Expenses.Get(s.ctx, mallory.ID, e.ID)
	s.ErrorIs(err, core.ErrNotFound)
	_, err = s.svc.Expenses.Update(s.ctx, mallory.ID, e.ID, core.ExpensePatch{Amount: money(1)})
	s.ErrorIs(err, core.ErrNotFound)
	err = s.svc.Expenses.Delete(s.ctx, mallory.ID, e.ID)
	s.ErrorIs(err, core.ErrNotFound)
	s.Equal("Expense not found", core.Message(err, ""))

	list, err := s.svc.Expenses.List(s.ctx, mallory.ID)
	s.Require().NoError(err)
	s.Empty(list)

	aliceCats, err := s.svc.Categories.List(s.ctx, s.user.ID)
	s.Require().NoError(err)
	err = s.svc.Categories.Delete(s.ctx, mallory.ID, aliceCats[0].ID)
	s.ErrorIs(err, core.ErrNotFound)

	got, err := s.svc.Expenses.Get(s.ctx, s.user.ID, e.ID)
	s.Require().NoError(err)
	s.Equal(int64(500), got.Amount.Cents)
}

func (s *ServicesTestSuite) TestExpenseDelete() {
	e := s.addExpense("Food", 500, "2025-01-02")
	s.Require().NoError(s.svc.Expenses.Delete(s.ctx, s.user.ID, e.ID))

	_, err := s.svc.Expenses.Get(s.ctx, s.user.ID, e.ID)
	s.ErrorIs(err, core.ErrNotFound)

	s.Equal([]string{amqp.UserRegistered, amqp.ExpenseCreated, amqp.ExpenseDeleted}, s.pub.types())
}

func (s *ServicesTestSuite) TestBudgetUpsert() {
	first, err := s.svc.Budgets.Upsert(s.ctx, s.user.ID, BudgetInput{Month: 3, Year: 2025, Limit: core.Money{Cents: 50000}})
	s.Require().NoError(err)
	s.Equal("USD", first.Currency)

	second, err := s.svc.Budgets.Upsert(s.ctx, s.user.ID, BudgetInput{Month: 3, Year: 2025, Limit: core.Money{Cents: 75000}})
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(int64(75000), second.Limit.Cents)

	got, err := s.svc.Budgets.Get(s.ctx, s.user.ID, 3, 2025)
	s.Require().NoError(err)
	s.Equal(first.ID, got.ID)
	s.Equal(int64(75000), got.Limit.Cents)

	_, err = s.svc.Budgets.Get(s.ctx, s.user.ID, 4, 2025)
	s.ErrorIs(err, core.ErrNotFound)
	s.Equal("Budget not found", core.Message(err, ""))
}

func (s *ServicesTestSuite) TestBudgetValidation() {
	tests := []struct {
		name string
		in   BudgetInput
	}{
		{"month zero", BudgetInput{Month: 0, Year: 2025, Limit: core.Money{Cents: 100}}},
		{"month thirteen", BudgetInput{Month: 13, Year: 2025, Limit: core.Money{Cents: 100}}},
		{"year zero", BudgetInput{Month: 1, Year: 0, Limit: core.Money{Cents: 100}}},
		{"zero limit", BudgetInput{Month: 1, Year: 2025}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.svc.Budgets.Upsert(s.ctx, s.user.ID, tt.in)
			s.ErrorIs(err, core.ErrValidation)
		})
	}

	_, err := s.svc.Budgets.Get(s.ctx, s.user.ID, 13, 2025)
	s.ErrorIs(err, core.ErrValidation)
}

func (s *ServicesTestSuite) TestRecurring() {
	r, err := s.svc.Recurring.Create(s.ctx, s.user.ID, RecurringInput{
		Category:      "Bills",
		Amount:        money(9900),
		Frequency:     core.Monthly,
		NextDate:      "2025-02-01",
		PaymentMethod: "bank",
	})
	s.Require().NoError(err)
	s.True(r.IsActive)

	inactive := false
	paused, err := s.svc.Recurring.Create(s.ctx, s.user.ID, RecurringInput{
		Category:      "Health",
		Amount:        money(2000),
		Frequency:     core.Yearly,
		NextDate:      "2025-06-01",
		PaymentMethod: "card",
		IsActive:      &inactive,
	})
	s.Require().NoError(err)
	s.False(paused.IsActive)

	_, err = s.svc.Recurring.Create(s.ctx, s.user.ID, RecurringInput{
		Category:      "Bills",
		Amount:        money(100),
		Frequency:     "fortnightly",
		NextDate:      "2025-02-01",
		PaymentMethod: "bank",
	})
	s.ErrorIs(err, core.ErrValidation)

	list, err := s.svc.Recurring.List(s.ctx, s.user.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(r.ID, list[0].ID)

	s.Require().NoError(s.svc.Recurring.Delete(s.ctx, s.user.ID, r.ID))
	err = s.svc.Recurring.Delete(s.ctx, s.user.ID, r.ID)
	s.ErrorIs(err, core.ErrNotFound)
	s.Equal("Recurring expense not found", core.Message(err, ""))
}

func (s *ServicesTestSuite) TestDashboardStats() {
	s.addExpense("Food", 1000, "2025-01-03")
	s.addExpense("Food", 500, "2025-01-20")
	s.addExpense("Bills", 2000, "2025-02-01")

	stats, err := s.svc.Dashboard.Stats(s.ctx, s.user.ID)
	s.Require().NoError(err)
	s.Equal(int64(3500), stats.TotalExpenses.Cents)
	s.Equal(3, stats.TotalTransactions)
	s.Equal(int64(1500), stats.ByCategory["Food"].Cents)
	s.Equal(int64(2000), stats.ByCategory["Bills"].Cents)
	s.Equal(int64(1500), stats.MonthlyTrend["2025-01"].Cents)
}

func (s *ServicesTestSuite) TestExportCSV() {
	s.addExpense("Food", 1000, "2025-01-03")
	s.addExpense("Bills", 2000, "2025-02-01")

	var buf bytes.Buffer
	s.Require().NoError(s.svc.Export.Export(s.ctx, s.user.ID, export.CSV, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	s.Require().NoError(err)
	s.Len(rows, 3)
	s.Equal("Food", rows[1][1])
}

func (s *ServicesTestSuite) TestExportPDFNeedsUser() {
	var buf bytes.Buffer
	err := s.svc.Export.Export(s.ctx, "ghost", export.PDF, &buf)
	s.ErrorIs(err, core.ErrNotFound)

	buf.Reset()
	s.Require().NoError(s.svc.Export.Export(s.ctx, s.user.ID, export.PDF, &buf))
	s.True(bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func (s *ServicesTestSuite) TestPublishFailureDoesNotFailWrites() {
	s.pub.err = errors.New("broker down")
	e := s.addExpense("Food", 100, "2025-01-01")
	s.NotEmpty(e.ID)
}

func TestEventsWithoutPublisher(t *testing.T) {
	ev := events{}
	assert.NotPanics(t, func() {
		ev.emit(context.Background(), amqp.ExpenseCreated, "u", "e")
	})
}

func TestNotFoundAs(t *testing.T) {
	err := notFoundAs(errors.Join(core.ErrNotFound), core.ErrExpenseNotFound, "get")
	require.ErrorIs(t, err, core.ErrExpenseNotFound)

	other := errors.New("disk on fire")
	err = notFoundAs(other, core.ErrExpenseNotFound, "get")
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "get: disk on fire", err.Error())
}
