package dncform

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/donotcall-tel/complaint-gateway/internal/complaint_service/domain"
)

// DefaultFormURL is the landing page of the published complaint form.
const DefaultFormURL = "https://complaints.donotcall.gov/complaint/complaintcheck.aspx"

// commentText identifies the filing channel in the form's free-text field.
const commentText = "Submitted via donotcall.tel"

// Form protocol selectors. These mirror the published form bit-exact; do not
// rename without checking the live pages.
const (
	selErrorMsg        = "#ErrorMsg"
	selGenericSubmit   = `input[type="submit"]`
	selStepOneContinue = "#StepOneContinueButton"

	selPhone          = "#PhoneTextBox"
	selDateOfCall     = "#DateOfCallTextBox"
	selTimeOfCall     = "#TimeOfCallDropDownList"
	selMinutes        = "#ddlMinutes"
	selPhoneCallRadio = "#PhoneCallRadioButton"

	selCallerPhone   = "#CallerPhoneNumberTextBox"
	selCity          = "#CityTextBox"
	selState         = "#StateDropDownList"
	selZip           = "#ZipCodeTextBox"
	selComment       = "#CommentTextBox"
	selStepTwoSubmit = "#StepTwoSubmitButton"

	selAcceptedPanel = "#StepTwoAcceptedPanel"
)

// Submitter deterministically drives the fixed 3-step complaint form for one
// complaint and verifies acceptance. One Submit call per complaint; no state
// is shared across calls except the browser runtime.
type Submitter struct {
	formURL       string
	diagnosticDir string
	navTimeout    time.Duration
	localizer     domain.TimeLocalizer
	logger        *slog.Logger
}

func NewSubmitter(formURL, diagnosticDir string, navTimeout time.Duration, localizer domain.TimeLocalizer, logger *slog.Logger) *Submitter {
	if formURL == "" {
		formURL = DefaultFormURL
	}
	return &Submitter{
		formURL:       formURL,
		diagnosticDir: diagnosticDir,
		navTimeout:    navTimeout,
		localizer:     localizer,
		logger:        logger.With("component", "form_submitter"),
	}
}

// Submit opens one exclusive session against the runtime, walks the form,
// and returns a terminal outcome. The session is closed exactly once on
// every path. Failures abort only this complaint.
func (s *Submitter) Submit(ctx context.Context, rt Runtime, c *domain.Complaint) domain.SubmissionOutcome {
	logger := s.logger.With("target", c.Target)

	session, err := rt.NewSession(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to open form session", "error", err)
		return domain.SubmissionOutcome{Complaint: c, Status: domain.StatusFailed, Err: err}
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.WarnContext(ctx, "Failed to close form session", "error", err)
		}
	}()

	outcome, diagPath, err := s.run(ctx, session, c)
	if err != nil {
		logger.ErrorContext(ctx, "Submission did not complete", "status", outcome.String(), "error", err)
		return domain.SubmissionOutcome{Complaint: c, Status: outcome, DiagnosticPath: diagPath, Err: err}
	}

	logger.InfoContext(ctx, "Submission confirmed")
	return domain.SubmissionOutcome{Complaint: c, Status: domain.StatusConfirmed}
}

// run walks Start -> Loaded -> Step1Submitted -> Step2Submitted ->
// Verified/Unconfirmed. It returns the terminal status, an optional
// diagnostic artifact path, and the fatal error if any.
func (s *Submitter) run(ctx context.Context, session FormSession, c *domain.Complaint) (domain.SubmissionStatus, string, error) {
	// Start -> Loaded
	if err := session.Navigate(s.formURL); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := session.AwaitIdle(s.navTimeout); err != nil {
		return domain.StatusFailed, "", err
	}

	// Loaded -> Step1Submitted
	if err := s.clickSubmit(session, selStepOneContinue); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := session.AwaitIdle(s.navTimeout); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := s.checkErrorBanner(session); err != nil {
		return domain.StatusFailed, "", err
	}

	local := c.LocalTime(ctx, s.localizer)
	if err := session.Type(selPhone, c.FromNumber); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := session.Type(selDateOfCall, local.Format("01/02/2006")); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := session.Select(selTimeOfCall, local.Format("15")); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := session.Select(selMinutes, local.Format("04")); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := session.Click(selPhoneCallRadio); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := s.clickSubmit(session, selStepOneContinue); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := session.AwaitIdle(s.navTimeout); err != nil {
		return domain.StatusFailed, "", err
	}

	// Step1Submitted -> Step2Submitted
	if err := s.checkErrorBanner(session); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := session.Type(selCallerPhone, c.Target); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := session.Type(selCity, c.FromCity); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := session.Select(selState, c.FromState); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := session.Type(selZip, c.FromZip); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := session.Type(selComment, commentText); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := s.clickSubmit(session, selStepTwoSubmit); err != nil {
		return domain.StatusFailed, "", err
	}
	if err := session.AwaitIdle(s.navTimeout); err != nil {
		return domain.StatusFailed, "", err
	}

	// Step2Submitted -> Verified | Unconfirmed
	if err := s.checkErrorBanner(session); err != nil {
		return domain.StatusFailed, "", err
	}
	accepted, err := session.Exists(selAcceptedPanel)
	if err != nil {
		return domain.StatusFailed, "", err
	}
	if !accepted {
		path := s.diagnosticPath(c)
		if err := session.SnapshotPDF(path); err != nil {
			s.logger.Error("Failed to capture diagnostic snapshot", "path", path, "error", err)
			path = ""
		}
		return domain.StatusUnconfirmed, path, domain.ErrSubmissionUnconfirmed
	}
	return domain.StatusConfirmed, "", nil
}

// clickSubmit prefers the form version's named control and falls back to the
// generic submit input when it is absent.
func (s *Submitter) clickSubmit(session FormSession, preferred string) error {
	ok, err := session.Exists(preferred)
	if err != nil {
		return err
	}
	selector := preferred
	if !ok {
		selector = selGenericSubmit
	}
	return session.Click(selector)
}

// checkErrorBanner aborts with FormRejectedError when the inline error node
// carries non-blank text.
func (s *Submitter) checkErrorBanner(session FormSession) error {
	text, err := session.TextOf(selErrorMsg)
	if err != nil {
		return err
	}
	if banner := strings.TrimSpace(text); banner != "" {
		return &domain.FormRejectedError{Banner: banner}
	}
	return nil
}

func (s *Submitter) diagnosticPath(c *domain.Complaint) string {
	name := fmt.Sprintf("%s-%s-%d.pdf", c.Target, c.FromNumber, c.FiledAt.Unix())
	return filepath.Join(s.diagnosticDir, name)
}
