package domain

import (
	"context"
	"sync"
	"time"
)

// TimeLocalizer resolves a UTC instant into the local time for a postal
// code. The bool reports whether localization actually resolved; on false
// the returned time is the UTC instant unchanged.
type TimeLocalizer interface {
	Localize(ctx context.Context, postalCode string, utc time.Time) (time.Time, bool)
}

// Complaint is one immutable filing request: the sender's identity and
// location, one target number, and the UTC instant the request arrived.
// Sender fields are copied by value so concurrent sibling submissions share
// nothing.
type Complaint struct {
	FromNumber string // sender, national significant digits
	FromCity   string
	FromState  string
	FromZip    string
	Target     string // target, national significant digits
	FiledAt    time.Time

	localOnce sync.Once
	local     time.Time
}

// NewComplaint combines one inbound message's sender fields with one
// validated candidate number. No I/O.
func NewComplaint(msg *InboundMessage, target CandidateNumber, now time.Time) *Complaint {
	return &Complaint{
		FromNumber: msg.FromNational(),
		FromCity:   msg.FromCity,
		FromState:  msg.FromState,
		FromZip:    msg.FromZip,
		Target:     target.National(),
		FiledAt:    now.UTC(),
	}
}

// LocalTime returns FiledAt in the sender's local timezone, resolved via the
// localizer at most once for the record's lifetime. Concurrent first reads
// trigger a single lookup. A nil localizer, or any resolution failure, keeps
// the UTC instant.
func (c *Complaint) LocalTime(ctx context.Context, localizer TimeLocalizer) time.Time {
	c.localOnce.Do(func() {
		c.local = c.FiledAt
		if localizer == nil {
			return
		}
		if t, ok := localizer.Localize(ctx, c.FromZip, c.FiledAt); ok {
			c.local = t
		}
	})
	return c.local
}
