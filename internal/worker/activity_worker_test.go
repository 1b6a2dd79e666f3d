package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	applog "spendwise/internal/log"
)

type fakeExpenses struct {
	items map[string]core.Expense
	err   error
}

func (f fakeExpenses) GetExpense(_ context.Context, userID, id string) (core.Expense, error) {
	if f.err != nil {
		return core.Expense{}, f.err
	}
	e, ok := f.items[id]
	if !ok || e.UserID != userID {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func newTestWorker(reader ExpenseReader) (*ActivityWorker, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Format: "json", Output: &buf})
	return NewActivityWorker(reader, logger), &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestHandleEvent(t *testing.T) {
	reader := fakeExpenses{items: map[string]core.Expense{
		"e1": {ID: "e1", UserID: "u1", Category: "Food", Amount: core.Money{Cents: 1250}},
	}}

	tests := []struct {
		name      string
		ev        *amqp.Event
		wantMsg   string
		wantLevel string
		check     func(t *testing.T, entry map[string]any)
	}{
		{
			name:      "expense created is enriched",
			ev:        amqp.NewEvent(amqp.ExpenseCreated, "u1", "e1"),
			wantMsg:   "Activity",
			wantLevel: "INFO",
			check: func(t *testing.T, entry map[string]any) {
				assert.Equal(t, "Food", entry[applog.FieldCategory])
				assert.EqualValues(t, 1250, entry[applog.FieldAmountCents])
			},
		},
		{
			name:      "expense already deleted",
			ev:        amqp.NewEvent(amqp.ExpenseUpdated, "u1", "gone"),
			wantMsg:   "Activity",
			wantLevel: "INFO",
			check: func(t *testing.T, entry map[string]any) {
				assert.Equal(t, true, entry["stale"])
			},
		},
		{
			name:      "budget event",
			ev:        amqp.NewEvent(amqp.BudgetUpserted, "u1", "b1"),
			wantMsg:   "Activity",
			wantLevel: "INFO",
			check: func(t *testing.T, entry map[string]any) {
				assert.Equal(t, "b1", entry[applog.FieldEntityID])
				assert.Equal(t, "worker", entry[applog.FieldComponent])
			},
		},
		{
			name:      "unknown type",
			ev:        amqp.NewEvent("invoice.sent", "u1", "x"),
			wantMsg:   "Unknown event type, skipping",
			wantLevel: "WARN",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, buf := newTestWorker(reader)
			require.NoError(t, w.HandleEvent(context.Background(), tt.ev))

			entry := lastLine(t, buf)
			assert.Equal(t, tt.wantMsg, entry["msg"])
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, tt.ev.Type, entry[applog.FieldEventType])
			if tt.check != nil {
				tt.check(t, entry)
			}
		})
	}
}

func TestHandleEventStoreFailureIsRetried(t *testing.T) {
	boom := errors.New("database is locked")
	w, _ := newTestWorker(fakeExpenses{err: boom})

	err := w.HandleEvent(context.Background(), amqp.NewEvent(amqp.ExpenseCreated, "u1", "e1"))
	assert.ErrorIs(t, err, boom)

	err = w.HandleEvent(context.Background(), amqp.NewEvent(amqp.ExpenseDeleted, "u1", "e1"))
	assert.NoError(t, err, "events that need no lookup are unaffected")
}

func TestHandleEventWithoutStore(t *testing.T) {
	w, buf := newTestWorker(nil)
	require.NoError(t, w.HandleEvent(context.Background(), amqp.NewEvent(amqp.ExpenseCreated, "u1", "e1")))
	assert.Equal(t, "Activity", lastLine(t, buf)["msg"])
}
