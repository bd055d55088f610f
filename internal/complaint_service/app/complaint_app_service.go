package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/donotcall-tel/complaint-gateway/internal/complaint_service/adapters/dncform"
	"github.com/donotcall-tel/complaint-gateway/internal/complaint_service/domain"
)

// ResultStatus classifies the reply for one inbound request.
type ResultStatus int

const (
	// ResultOK means the request was processed; Messages reflect each
	// submission's outcome.
	ResultOK ResultStatus = iota
	// ResultInvalid means the request was rejected before any submission
	// attempt.
	ResultInvalid
	// ResultRateLimited means the sender is inside the cooldown window.
	ResultRateLimited
)

// InboundResult aggregates one request's handling for the transport layer.
type InboundResult struct {
	Status     ResultStatus
	RetryAfter time.Duration
	Messages   []string
	Outcomes   []domain.SubmissionOutcome
}

// Submitter drives one complaint through the external form.
type Submitter interface {
	Submit(ctx context.Context, rt dncform.Runtime, c *domain.Complaint) domain.SubmissionOutcome
}

// RateLimiter is the dedup guard capability.
type RateLimiter interface {
	CheckAndRecord(key string) bool
	TTL() time.Duration
}

// EventTracker records confirmed filings.
type EventTracker interface {
	TrackFiling(ctx context.Context, target, sender string)
}

// ComplaintAppService orchestrates one inbound message: validate, dedup,
// extract targets, build complaints, and submit them concurrently.
type ComplaintAppService struct {
	guard     RateLimiter
	fetcher   domain.MediaFetcher
	localizer domain.TimeLocalizer
	launcher  dncform.Launcher
	submitter Submitter
	tracker   EventTracker
	logger    *slog.Logger
	now       func() time.Time
}

func NewComplaintAppService(
	guard RateLimiter,
	fetcher domain.MediaFetcher,
	localizer domain.TimeLocalizer,
	launcher dncform.Launcher,
	submitter Submitter,
	tracker EventTracker,
	logger *slog.Logger,
) *ComplaintAppService {
	return &ComplaintAppService{
		guard:     guard,
		fetcher:   fetcher,
		localizer: localizer,
		launcher:  launcher,
		submitter: submitter,
		tracker:   tracker,
		logger:    logger.With("service", "complaint_app"),
		now:       time.Now,
	}
}

// HandleInbound runs the full pipeline for one inbound message. Errors are
// folded into the result; the reply never carries a stack trace.
func (s *ComplaintAppService) HandleInbound(ctx context.Context, msg *domain.InboundMessage) *InboundResult {
	logger := s.logger.With("message_id", msg.ID, "from", msg.FromNational())
	logger.InfoContext(ctx, "Processing inbound message", "num_media", msg.NumMedia)

	if msg.FromCountryCode() != domain.DomesticCountryCode {
		logger.WarnContext(ctx, "Rejected non-domestic sender", "country_code", msg.FromCountryCode())
		return &InboundResult{
			Status:   ResultInvalid,
			Messages: []string{"Unable to file complaints from non-US numbers."},
		}
	}

	// Check-and-record happens before any extraction or submission work so
	// two near-simultaneous requests from one sender cannot both pass.
	if s.guard.CheckAndRecord(msg.FromNational()) {
		logger.InfoContext(ctx, "Rejected duplicate request inside cooldown window")
		return &InboundResult{Status: ResultRateLimited, RetryAfter: s.guard.TTL()}
	}

	candidates, err := domain.ExtractCandidates(ctx, msg, s.fetcher)
	if err != nil {
		logger.WarnContext(ctx, "Candidate extraction failed", "error", err)
		return &InboundResult{Status: ResultInvalid, Messages: []string{userMessage(err)}}
	}
	if len(candidates) == 0 {
		return &InboundResult{
			Status:   ResultInvalid,
			Messages: []string{"You must provide a phone number to file a complaint."},
		}
	}

	runtime, err := s.launcher.Launch(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to acquire browser runtime", "error", err)
		return &InboundResult{
			Status:   ResultOK,
			Messages: []string{"Unable to reach the complaint form. Please try again later."},
		}
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			logger.WarnContext(ctx, "Failed to close browser runtime", "error", err)
		}
	}()

	outcomes := s.submitAll(ctx, runtime, msg, candidates)

	result := &InboundResult{Status: ResultOK, Outcomes: outcomes}
	for _, outcome := range outcomes {
		if outcome.Status == domain.StatusConfirmed {
			local := outcome.Complaint.LocalTime(ctx, s.localizer)
			result.Messages = append(result.Messages,
				fmt.Sprintf("Complaint filed for %q at %s.", outcome.Complaint.Target, local.Format("January 2, 2006 3:04 PM")))
			s.tracker.TrackFiling(ctx, outcome.Complaint.Target, outcome.Complaint.FromNumber)
			continue
		}
		result.Messages = append(result.Messages, userMessage(outcome.Err))
	}
	return result
}

// submitAll runs one submission per candidate concurrently and settles all
// of them: one complaint's failure never suppresses a sibling's success, and
// outcomes keep launch order. In-flight submissions are never cancelled.
func (s *ComplaintAppService) submitAll(ctx context.Context, runtime dncform.Runtime, msg *domain.InboundMessage, candidates []domain.CandidateNumber) []domain.SubmissionOutcome {
	now := s.now().UTC()
	outcomes := make([]domain.SubmissionOutcome, len(candidates))

	var wg sync.WaitGroup
	for i, candidate := range candidates {
		complaint := domain.NewComplaint(msg, candidate, now)
		wg.Add(1)
		go func(i int, c *domain.Complaint) {
			defer wg.Done()
			outcomes[i] = s.submitter.Submit(ctx, runtime, c)
		}(i, complaint)
	}
	wg.Wait()
	return outcomes
}

// userMessage extracts sender-presentable text from a pipeline error.
func userMessage(err error) string {
	if err == nil {
		return "Unable to file complaint."
	}
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}
	var rejectedErr *domain.FormRejectedError
	if errors.As(err, &rejectedErr) {
		return rejectedErr.Banner
	}
	if errors.Is(err, domain.ErrSubmissionUnconfirmed) {
		return domain.ErrSubmissionUnconfirmed.Error()
	}
	return err.Error()
}
