package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"expensetracker/internal/amqp"
)

// AuditEntry is one line of the audit log.
type AuditEntry struct {
	ReceivedAt time.Time          `json:"received_at"`
	Event      *amqp.ExpenseEvent `json:"event"`
}

// AuditWorker appends every expense event it receives to an audit trail as JSON lines.
type AuditWorker struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time

	processed int64
}

func NewAuditWorker(out io.Writer) *AuditWorker {
	return &AuditWorker{
		out: out,
		now: time.Now,
	}
}

// HandleEvent writes the event to the audit trail. It matches the handler
// signature expected by amqp.Client.ConsumeExpenseEvents.
func (w *AuditWorker) HandleEvent(ctx context.Context, event *amqp.ExpenseEvent) error {
	if event == nil {
		return fmt.Errorf("nil event")
	}

	line, err := json.Marshal(AuditEntry{ReceivedAt: w.now().UTC(), Event: event})
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.out.Write(line); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	w.processed++

	slog.InfoContext(ctx, "Expense event audited",
		"type", event.Type,
		"id", event.ID,
		"removed", event.Removed)

	return nil
}

// Processed returns how many events have been written.
func (w *AuditWorker) Processed() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.processed
}
