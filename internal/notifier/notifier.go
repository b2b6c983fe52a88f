// Package notifier formats listings into chat messages and delivers them to
// subscribed channels.
package notifier

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"jobmate/internship-service/internal/model"
)

// dateFormat renders posting dates the way the listing table writes them.
const dateFormat = "Jan 02"

// Message is the display payload for one listing.
type Message struct {
	Title           string
	Location        string
	DatePosted      string
	ApplicationLink string
}

// Sender delivers a message to one chat channel. The Discord adapter
// implements it.
type Sender interface {
	Send(ctx context.Context, channelID string, msg Message) error
}

// Format builds the message for a listing: "<company> - <role>" plus
// location, posting date and application link. Unparsed dates are shown
// as scraped.
func Format(l model.Listing) Message {
	date := l.RawDate
	if l.DatePosted != nil {
		date = l.DatePosted.Format(dateFormat)
	}
	return Message{
		Title:           l.Company + " - " + l.Role,
		Location:        l.Location,
		DatePosted:      date,
		ApplicationLink: l.ApplicationLink,
	}
}

// Result counts the outcome of a Dispatch call.
type Result struct {
	Sent   int
	Failed int
}

// Notifier paces outbound messages through a shared rate limiter so a large
// backfill does not trip the chat platform's limits.
type Notifier struct {
	sender  Sender
	limiter *rate.Limiter
	log     *slog.Logger
}

// New returns a Notifier sending at most perSecond messages per second
// with the given burst. perSecond <= 0 disables pacing.
func New(sender Sender, perSecond float64, burst int) *Notifier {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Notifier{
		sender:  sender,
		limiter: rate.NewLimiter(limit, burst),
		log:     slog.With("component", "notifier"),
	}
}

// Dispatch sends one message per listing to channelID, in order.
// A failed send is logged and skipped; the remaining listings are still
// attempted. Only a cancelled ctx stops the batch early.
func (n *Notifier) Dispatch(ctx context.Context, channelID string, listings []model.Listing) Result {
	var res Result
	for i, l := range listings {
		if err := n.limiter.Wait(ctx); err != nil {
			n.log.WarnContext(ctx, "dispatch interrupted",
				"channel", channelID, "remaining", len(listings)-i, "err", err)
			res.Failed += len(listings) - i
			return res
		}

		msg := Format(l)
		if err := n.sender.Send(ctx, channelID, msg); err != nil {
			res.Failed++
			n.log.WarnContext(ctx, "send failed, skipping listing",
				"channel", channelID, "title", msg.Title, "err", err)
			continue
		}
		res.Sent++
	}

	n.log.InfoContext(ctx, "dispatch done", "channel", channelID, "sent", res.Sent, "failed", res.Failed)
	return res
}
