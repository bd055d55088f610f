package app

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donotcall-tel/complaint-gateway/internal/complaint_service/adapters/dncform"
	"github.com/donotcall-tel/complaint-gateway/internal/complaint_service/domain"
)

// --- Mocks ---

type MockEventTracker struct {
	mock.Mock
}

func (m *MockEventTracker) TrackFiling(ctx context.Context, target, sender string) {
	m.Called(ctx, target, sender)
}

type stubRuntime struct {
	mu     sync.Mutex
	closed int
}

func (r *stubRuntime) NewSession(ctx context.Context) (dncform.FormSession, error) {
	return nil, nil
}

func (r *stubRuntime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

type stubLauncher struct {
	runtime *stubRuntime
	err     error
	calls   int
}

func (l *stubLauncher) Launch(ctx context.Context) (dncform.Runtime, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.runtime, nil
}

// stubSubmitter settles each complaint by target number, recording call
// order.
type stubSubmitter struct {
	mu      sync.Mutex
	targets []string
	fail    map[string]error
}

func (s *stubSubmitter) Submit(ctx context.Context, rt dncform.Runtime, c *domain.Complaint) domain.SubmissionOutcome {
	s.mu.Lock()
	s.targets = append(s.targets, c.Target)
	s.mu.Unlock()

	if err, ok := s.fail[c.Target]; ok {
		return domain.SubmissionOutcome{Complaint: c, Status: domain.StatusFailed, Err: err}
	}
	return domain.SubmissionOutcome{Complaint: c, Status: domain.StatusConfirmed}
}

type fixedLocalizer struct {
	zone *time.Location
}

func (l *fixedLocalizer) Localize(ctx context.Context, postalCode string, utc time.Time) (time.Time, bool) {
	return utc.In(l.zone), true
}

type harness struct {
	service   *ComplaintAppService
	guard     *DedupGuard
	launcher  *stubLauncher
	submitter *stubSubmitter
	tracker   *MockEventTracker
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	phoenix, err := time.LoadLocation("America/Phoenix")
	require.NoError(t, err)

	guard := NewDedupGuard(time.Minute)
	t.Cleanup(guard.Stop)

	launcher := &stubLauncher{runtime: &stubRuntime{}}
	submitter := &stubSubmitter{fail: map[string]error{}}
	tracker := new(MockEventTracker)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := NewComplaintAppService(guard, nil, &fixedLocalizer{zone: phoenix}, launcher, submitter, tracker, logger)
	service.now = func() time.Time { return time.Date(2019, 3, 1, 20, 30, 0, 0, time.UTC) }

	return &harness{service: service, guard: guard, launcher: launcher, submitter: submitter, tracker: tracker}
}

func inbound(t *testing.T, from, body string) *domain.InboundMessage {
	t.Helper()
	form := url.Values{
		"From":      {from},
		"FromCity":  {"PHOENIX"},
		"FromState": {"AZ"},
		"FromZip":   {"85001"},
		"To":        {"+12025550000"},
		"Body":      {body},
		"NumMedia":  {"0"},
	}
	msg, err := domain.NewInboundMessage(form)
	require.NoError(t, err)
	return msg
}

func TestHandleInbound_SingleNumberConfirmed(t *testing.T) {
	h := newHarness(t)
	h.tracker.On("TrackFiling", mock.Anything, "6235371600", "4155551234").Return()

	result := h.service.HandleInbound(context.Background(), inbound(t, "+14155551234", "+16235371600"))

	assert.Equal(t, ResultOK, result.Status)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, domain.StatusConfirmed, result.Outcomes[0].Status)

	require.Len(t, result.Messages, 1)
	// 20:30 UTC is 13:30 in Phoenix.
	assert.Equal(t, `Complaint filed for "6235371600" at March 1, 2019 1:30 PM.`, result.Messages[0])

	assert.Equal(t, 1, h.launcher.calls)
	assert.Equal(t, 1, h.launcher.runtime.closed, "runtime must be closed once after the batch settles")
	h.tracker.AssertExpectations(t)
}

func TestHandleInbound_NonDomesticSender(t *testing.T) {
	h := newHarness(t)

	result := h.service.HandleInbound(context.Background(), inbound(t, "+442079460958", "+16235371600"))

	assert.Equal(t, ResultInvalid, result.Status)
	assert.Equal(t, []string{"Unable to file complaints from non-US numbers."}, result.Messages)
	assert.Empty(t, h.submitter.targets, "no submission may run for a non-domestic sender")
}

func TestHandleInbound_RateLimited(t *testing.T) {
	h := newHarness(t)
	h.tracker.On("TrackFiling", mock.Anything, mock.Anything, mock.Anything).Return()

	first := h.service.HandleInbound(context.Background(), inbound(t, "+14155551234", "+16235371600"))
	require.Equal(t, ResultOK, first.Status)

	second := h.service.HandleInbound(context.Background(), inbound(t, "+14155551234", "+16235371600"))

	assert.Equal(t, ResultRateLimited, second.Status)
	assert.Equal(t, time.Minute, second.RetryAfter)
	assert.Len(t, h.submitter.targets, 1, "the rate-limited request must not reach the submitter")
	assert.Equal(t, 1, h.launcher.calls)
}

func TestHandleInbound_EmptyBody(t *testing.T) {
	h := newHarness(t)

	result := h.service.HandleInbound(context.Background(), inbound(t, "+14155551234", ""))

	assert.Equal(t, ResultInvalid, result.Status)
	assert.Equal(t, []string{"You must provide a phone number to file a complaint."}, result.Messages)
	assert.Zero(t, h.launcher.calls, "no browser may be launched without candidates")
}

func TestHandleInbound_MalformedToken(t *testing.T) {
	h := newHarness(t)

	result := h.service.HandleInbound(context.Background(), inbound(t, "+14155551234", "INVALID_NUMBER"))

	assert.Equal(t, ResultInvalid, result.Status)
	assert.Equal(t, []string{`Unable to parse phone number "INVALID_NUMBER".`}, result.Messages)
}

func TestHandleInbound_PartialFailureIsolation(t *testing.T) {
	h := newHarness(t)
	h.submitter.fail["4805551212"] = &domain.FormRejectedError{Banner: "This number is not eligible."}
	h.tracker.On("TrackFiling", mock.Anything, "6235371600", "4155551234").Return()

	result := h.service.HandleInbound(context.Background(), inbound(t, "+14155551234", "+16235371600,+14805551212"))

	assert.Equal(t, ResultOK, result.Status)
	require.Len(t, result.Outcomes, 2)

	// Outcomes keep launch order regardless of completion order.
	assert.Equal(t, "6235371600", result.Outcomes[0].Complaint.Target)
	assert.Equal(t, domain.StatusConfirmed, result.Outcomes[0].Status)
	assert.Equal(t, "4805551212", result.Outcomes[1].Complaint.Target)
	assert.Equal(t, domain.StatusFailed, result.Outcomes[1].Status)

	require.Len(t, result.Messages, 2)
	assert.Contains(t, result.Messages[0], "Complaint filed")
	assert.Equal(t, "This number is not eligible.", result.Messages[1])

	assert.ElementsMatch(t, []string{"6235371600", "4805551212"}, h.submitter.targets)
	assert.Equal(t, 1, h.launcher.runtime.closed)
	h.tracker.AssertExpectations(t)
	h.tracker.AssertNumberOfCalls(t, "TrackFiling", 1)
}

func TestHandleInbound_LaunchFailure(t *testing.T) {
	h := newHarness(t)
	h.launcher.err = assert.AnError

	result := h.service.HandleInbound(context.Background(), inbound(t, "+14155551234", "+16235371600"))

	assert.Equal(t, ResultOK, result.Status)
	assert.Equal(t, []string{"Unable to reach the complaint form. Please try again later."}, result.Messages)
	assert.Empty(t, h.submitter.targets)
}
