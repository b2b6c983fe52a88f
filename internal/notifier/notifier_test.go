package notifier_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobmate/internship-service/internal/model"
	"jobmate/internship-service/internal/notifier"
)

type recordingSender struct {
	mu     sync.Mutex
	sent   []notifier.Message
	failOn map[string]bool // titles that fail
}

func (r *recordingSender) Send(ctx context.Context, channelID string, msg notifier.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn[msg.Title] {
		return errors.New("missing permissions")
	}
	r.sent = append(r.sent, msg)
	return nil
}

func TestFormat(t *testing.T) {
	d := time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)
	msg := notifier.Format(model.Listing{
		Company:         "Acme",
		Role:            "SWE Intern",
		Location:        "NYC",
		DatePosted:      &d,
		RawDate:         "2025-01-05",
		ApplicationLink: "https://acme.com/apply",
	})
	require.Equal(t, notifier.Message{
		Title:           "Acme - SWE Intern",
		Location:        "NYC",
		DatePosted:      "Jan 05",
		ApplicationLink: "https://acme.com/apply",
	}, msg)
}

func TestFormat_UnparsedDateShownRaw(t *testing.T) {
	msg := notifier.Format(model.Listing{Company: "Acme", Role: "SWE", RawDate: "sometime"})
	require.Equal(t, "sometime", msg.DatePosted)
}

func TestDispatch_SkipsFailures(t *testing.T) {
	sender := &recordingSender{failOn: map[string]bool{"B - r": true}}
	n := notifier.New(sender, 0, 1)

	res := n.Dispatch(context.Background(), "c1", []model.Listing{
		{Company: "A", Role: "r"},
		{Company: "B", Role: "r"},
		{Company: "C", Role: "r"},
	})

	require.Equal(t, notifier.Result{Sent: 2, Failed: 1}, res)
	require.Len(t, sender.sent, 2)
	require.Equal(t, "A - r", sender.sent[0].Title)
	require.Equal(t, "C - r", sender.sent[1].Title)
}

func TestDispatch_CancelledContext(t *testing.T) {
	sender := &recordingSender{}
	// One token per hour: the second listing has to wait and the
	// cancellation wins.
	n := notifier.New(sender, 1.0/3600, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := n.Dispatch(ctx, "c1", []model.Listing{
		{Company: "A", Role: "r"},
		{Company: "B", Role: "r"},
		{Company: "C", Role: "r"},
	})
	require.Equal(t, notifier.Result{Sent: 1, Failed: 2}, res)
}

func TestDispatch_Empty(t *testing.T) {
	n := notifier.New(&recordingSender{}, 1, 1)
	require.Equal(t, notifier.Result{}, n.Dispatch(context.Background(), "c1", nil))
}
