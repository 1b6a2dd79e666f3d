// Package mongostore implements the storage ports on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

const (
	usersCollection      = "users"
	categoriesCollection = "categories"
	expensesCollection   = "expenses"
	budgetsCollection    = "budgets"
	recurringCollection  = "recurring_expenses"

	connectTimeout = 10 * time.Second
)

// insertionOrder sorts documents by created_at, then by insert sequence.
var insertionOrder = bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}}

// Store is a storage.Store backed by one MongoDB database.
type Store struct {
	client     *mongo.Client
	users      *mongo.Collection
	categories *mongo.Collection
	expenses   *mongo.Collection
	budgets    *mongo.Collection
	recurring  *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

// New connects to uri, verifies the connection and ensures indexes on
// database dbName.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetConnectTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client:     client,
		users:      db.Collection(usersCollection),
		categories: db.Collection(categoriesCollection),
		expenses:   db.Collection(expensesCollection),
		budgets:    db.Collection(budgetsCollection),
		recurring:  db.Collection(recurringCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.users, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.budgets, mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "month", Value: 1}, {Key: "year", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.categories, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}}},
		{s.expenses, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}}},
		{s.recurring, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// CreateUserWithCategories inserts the user, then its categories. If the
// category insert fails the user is removed again. A crash between the two
// writes can still leave a user without categories.
func (s *Store) CreateUserWithCategories(ctx context.Context, u core.User, cats []core.Category) error {
	if _, err := s.users.InsertOne(ctx, newUserDoc(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert user %s: %w", u.Email, core.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if len(cats) == 0 {
		return nil
	}

	docs := make([]any, len(cats))
	for i, c := range cats {
		docs[i] = newCategoryDoc(c)
	}
	if _, err := s.categories.InsertMany(ctx, docs); err != nil {
		s.compensateRegistration(u.ID)
		return fmt.Errorf("insert default categories: %w", err)
	}

	slog.InfoContext(ctx, "User registered in MongoDB", "user_id", u.ID, "categories", len(cats))
	return nil
}

func (s *Store) compensateRegistration(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.categories.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		slog.Error("Failed to roll back categories", "user_id", userID, "error", err)
	}
	if _, err := s.users.DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		slog.Error("Failed to roll back user", "user_id", userID, "error", err)
	}
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", notFound(err))
	}
	return doc.toCore(), nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (core.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return core.User{}, fmt.Errorf("get user %s: %w", id, notFound(err))
	}
	return doc.toCore(), nil
}

func (s *Store) ListCategories(ctx context.Context, userID string, limit int) ([]core.Category, error) {
	var docs []categoryDoc
	if err := s.findAll(ctx, s.categories, userID, limit, &docs); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(docs))
	for i, d := range docs {
		out[i] = d.toCore()
	}
	return out, nil
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) error {
	if _, err := s.categories.InsertOne(ctx, newCategoryDoc(c)); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (s *Store) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	var doc categoryDoc
	if err := s.categories.FindOne(ctx, owned(userID, id)).Decode(&doc); err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, notFound(err))
	}
	return doc.toCore(), nil
}

func (s *Store) DeleteCategory(ctx context.Context, userID, id string) error {
	return s.deleteOwned(ctx, s.categories, "delete category", userID, id)
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) error {
	if _, err := s.expenses.InsertOne(ctx, newExpenseDoc(e)); err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

func (s *Store) ListExpenses(ctx context.Context, userID string, limit int) ([]core.Expense, error) {
	var docs []expenseDoc
	if err := s.findAll(ctx, s.expenses, userID, limit, &docs); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Expense, len(docs))
	for i, d := range docs {
		out[i] = d.toCore()
	}
	return out, nil
}

func (s *Store) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	var doc expenseDoc
	if err := s.expenses.FindOne(ctx, owned(userID, id)).Decode(&doc); err != nil {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, notFound(err))
	}
	return doc.toCore(), nil
}

func (s *Store) UpdateExpense(ctx context.Context, e core.Expense) error {
	update := bson.M{"$set": bson.M{
		"category":       e.Category,
		"amount_cents":   e.Amount.Cents,
		"date":           e.Date,
		"payment_method": e.PaymentMethod,
		"notes":          e.Notes,
		"receipt_url":    e.ReceiptURL,
	}}
	res, err := s.expenses.UpdateOne(ctx, owned(e.UserID, e.ID), update)
	if err != nil {
		return fmt.Errorf("update expense %s: %w", e.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update expense %s: %w", e.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, userID, id string) error {
	return s.deleteOwned(ctx, s.expenses, "delete expense", userID, id)
}

// UpsertBudget writes the budget for its period in one FindOneAndUpdate.
// Two first-time upserts can race on the unique index; the loser retries
// once and then updates the winner's document.
func (s *Store) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	filter := bson.M{"user_id": b.UserID, "month": b.Month, "year": b.Year}
	update := bson.M{
		"$set": bson.M{
			"limit_cents": b.Limit.Cents,
			"currency":    b.Currency,
		},
		"$setOnInsert": bson.M{
			"_id":        b.ID,
			"created_at": b.CreatedAt.UTC(),
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc budgetDoc
	err := s.budgets.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		err = s.budgets.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget %d/%d: %w", b.Month, b.Year, err)
	}
	return doc.toCore(), nil
}

func (s *Store) GetBudget(ctx context.Context, userID string, month, year int) (core.Budget, error) {
	var doc budgetDoc
	err := s.budgets.FindOne(ctx, bson.M{"user_id": userID, "month": month, "year": year}).Decode(&doc)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %d/%d: %w", month, year, notFound(err))
	}
	return doc.toCore(), nil
}

func (s *Store) CreateRecurring(ctx context.Context, r core.RecurringExpense) error {
	if _, err := s.recurring.InsertOne(ctx, newRecurringDoc(r)); err != nil {
		return fmt.Errorf("create recurring expense: %w", err)
	}
	return nil
}

func (s *Store) ListRecurring(ctx context.Context, userID string, limit int) ([]core.RecurringExpense, error) {
	var docs []recurringDoc
	if err := s.findAll(ctx, s.recurring, userID, limit, &docs); err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	out := make([]core.RecurringExpense, len(docs))
	for i, d := range docs {
		out[i] = d.toCore()
	}
	return out, nil
}

func (s *Store) DeleteRecurring(ctx context.Context, userID, id string) error {
	return s.deleteOwned(ctx, s.recurring, "delete recurring expense", userID, id)
}

func (s *Store) findAll(ctx context.Context, coll *mongo.Collection, userID string, limit int, out any) error {
	opts := options.Find().SetSort(insertionOrder).SetLimit(int64(limit))
	cur, err := coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func (s *Store) deleteOwned(ctx context.Context, coll *mongo.Collection, op, userID, id string) error {
	res, err := coll.DeleteOne(ctx, owned(userID, id))
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s %s: %w", op, id, core.ErrNotFound)
	}
	return nil
}

func owned(userID, id string) bson.M {
	return bson.M{"_id": id, "user_id": userID}
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.ErrNotFound
	}
	return err
}
