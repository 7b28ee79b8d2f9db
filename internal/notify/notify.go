// Package notify tells each giver who they are giving to.
//
// Delivery runs after assignments are committed. A Dispatcher sends one
// message per giver on a bounded set of workers; each send has its own
// timeout and a failure is recorded for that recipient only.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Message is one assignment notification.
type Message struct {
	GroupName    string
	Year         int
	GiverName    string
	To           string
	ReceiverName string
}

// Notifier delivers a single notification.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Failure is a notification that could not be delivered.
type Failure struct {
	Email string
	Err   error
}

// Report summarizes a dispatch.
type Report struct {
	Attempted int
	Failed    []Failure
}

// Sent returns the number of delivered notifications.
func (r Report) Sent() int {
	return r.Attempted - len(r.Failed)
}

// Dispatcher fans messages out to a Notifier.
type Dispatcher struct {
	notifier Notifier
	workers  int
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher. workers < 1 means 1; timeout <= 0
// disables the per-message deadline.
func NewDispatcher(notifier Notifier, workers int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{notifier: notifier, workers: workers, timeout: timeout}
}

// Dispatch sends every message and waits for all of them. Failures are
// reported in input order.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs []Message) Report {
	report := Report{Attempted: len(msgs)}
	if len(msgs) == 0 {
		return report
	}

	errs := make([]error, len(msgs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range min(d.workers, len(msgs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = d.send(ctx, msgs[i])
			}
		}()
	}
	for i := range msgs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			continue
		}
		slog.Warn("Notification failed", "to", msgs[i].To, "error", err)
		report.Failed = append(report.Failed, Failure{Email: msgs[i].To, Err: err})
	}
	return report
}

func (d *Dispatcher) send(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panicked: %v", r)
		}
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.notifier.Notify(ctx, msg)
}

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the recipient. The receiver name is only logged at debug level.
func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "Assignment notification",
		"group", msg.GroupName,
		"year", msg.Year,
		"to", msg.To,
	)
	n.logger.DebugContext(ctx, "Assignment notification detail",
		"to", msg.To,
		"receiver", msg.ReceiverName,
	)
	return nil
}
