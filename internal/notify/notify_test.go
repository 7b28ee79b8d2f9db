package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeNotifier fails for the addresses in fail and tracks concurrency.
type fakeNotifier struct {
	fail     map[string]bool
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32

	mu   sync.Mutex
	sent []string
}

func (f *fakeNotifier) Notify(ctx context.Context, msg Message) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail[msg.To] {
		return errors.New("mailbox unavailable")
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg.To)
	f.mu.Unlock()
	return nil
}

func messages(n int) []Message {
	msgs := make([]Message, n)
	for i := range msgs {
		msgs[i] = Message{To: fmt.Sprintf("p%d@example.com", i), GiverName: fmt.Sprintf("p%d", i), ReceiverName: "x"}
	}
	return msgs
}

func TestDispatch_IsolatesFailures(t *testing.T) {
	fake := &fakeNotifier{fail: map[string]bool{"p1@example.com": true, "p3@example.com": true}}
	d := NewDispatcher(fake, 3, time.Second)

	report := d.Dispatch(context.Background(), messages(5))

	if report.Attempted != 5 {
		t.Errorf("attempted: expected 5, got %d", report.Attempted)
	}
	if report.Sent() != 3 {
		t.Errorf("sent: expected 3, got %d", report.Sent())
	}
	if len(report.Failed) != 2 || report.Failed[0].Email != "p1@example.com" || report.Failed[1].Email != "p3@example.com" {
		t.Errorf("unexpected failures: %+v", report.Failed)
	}
	if len(fake.sent) != 3 {
		t.Errorf("expected 3 deliveries, got %v", fake.sent)
	}
}

func TestDispatch_BoundsWorkers(t *testing.T) {
	fake := &fakeNotifier{delay: 10 * time.Millisecond}
	d := NewDispatcher(fake, 2, time.Second)

	report := d.Dispatch(context.Background(), messages(8))

	if len(report.Failed) != 0 {
		t.Fatalf("unexpected failures: %+v", report.Failed)
	}
	if peak := fake.peak.Load(); peak > 2 {
		t.Errorf("expected at most 2 concurrent sends, saw %d", peak)
	}
}

type blockingNotifier struct{}

func (blockingNotifier) Notify(ctx context.Context, msg Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatch_PerMessageTimeout(t *testing.T) {
	d := NewDispatcher(blockingNotifier{}, 4, 20*time.Millisecond)

	start := time.Now()
	report := d.Dispatch(context.Background(), messages(4))

	if len(report.Failed) != 4 {
		t.Fatalf("expected every send to time out, got %+v", report.Failed)
	}
	if !errors.Is(report.Failed[0].Err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", report.Failed[0].Err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("dispatch took too long: %v", time.Since(start))
	}
}

type panickyNotifier struct{}

func (panickyNotifier) Notify(ctx context.Context, msg Message) error {
	if msg.To == "p0@example.com" {
		panic("boom")
	}
	return nil
}

func TestDispatch_RecoversPanic(t *testing.T) {
	report := NewDispatcher(panickyNotifier{}, 1, 0).Dispatch(context.Background(), messages(3))
	if len(report.Failed) != 1 || report.Failed[0].Email != "p0@example.com" {
		t.Errorf("expected only p0 to fail, got %+v", report.Failed)
	}
}

func TestDispatch_Empty(t *testing.T) {
	report := NewDispatcher(&fakeNotifier{}, 0, 0).Dispatch(context.Background(), nil)
	if report.Attempted != 0 || len(report.Failed) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
}

func TestLogNotifier(t *testing.T) {
	if err := NewLogNotifier(nil).Notify(context.Background(), Message{To: "a@example.com"}); err != nil {
		t.Errorf("LogNotifier failed: %v", err)
	}
}

// fakeSMTPServer accepts one session and returns the DATA section it received.
func fakeSMTPServer(t *testing.T) (host string, port int, data <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		tp.PrintfLine("220 localhost ESMTP")
		var body string
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				tp.PrintfLine("250-localhost")
				tp.PrintfLine("250 8BITMIME")
			case cmd == "DATA":
				tp.PrintfLine("354 end with .")
				lines, err := tp.ReadDotLines()
				if err != nil {
					return
				}
				body = strings.Join(lines, "\n")
				tp.PrintfLine("250 queued")
			case cmd == "QUIT":
				tp.PrintfLine("221 bye")
				got <- body
				return
			default:
				tp.PrintfLine("250 ok")
			}
		}
	}()

	h, p, _ := net.SplitHostPort(ln.Addr().String())
	portNum, _ := strconv.Atoi(p)
	return h, portNum, got
}

func TestSMTPNotifier(t *testing.T) {
	host, port, data := fakeSMTPServer(t)
	n := NewSMTPNotifier(SMTPConfig{Host: host, Port: port, From: "santa@example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := n.Notify(ctx, Message{GroupName: "Family", Year: 2025, GiverName: "Alice", To: "alice@example.com", ReceiverName: "Bob"})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	select {
	case body := <-data:
		for _, want := range []string{"To: alice@example.com", "Hi Alice!", "You are the Secret Santa for: Bob", "Group: Family (2025)"} {
			if !strings.Contains(body, want) {
				t.Errorf("message missing %q:\n%s", want, body)
			}
		}
	case <-ctx.Done():
		t.Fatal("server did not receive the message")
	}
}

func TestSMTPNotifier_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	n := NewSMTPNotifier(SMTPConfig{Host: "127.0.0.1", Port: addr.Port, From: "santa@example.com"})
	if err := n.Notify(context.Background(), Message{To: "a@example.com"}); err == nil {
		t.Error("expected error for unreachable server")
	}
}
