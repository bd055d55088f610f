package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	twilioclient "github.com/twilio/twilio-go/client"
	"github.com/twilio/twilio-go/twiml"

	"github.com/donotcall-tel/complaint-gateway/internal/complaint_service/app"
	"github.com/donotcall-tel/complaint-gateway/internal/complaint_service/domain"
)

const MaxRequestBodySize = 1 << 20 // 1 MB

const signatureHeader = "X-Twilio-Signature"

// InboundProcessor defines the interface required by the WebhookHandler for
// processing inbound messages. This makes testing easier by allowing mocks.
type InboundProcessor interface {
	HandleInbound(ctx context.Context, msg *domain.InboundMessage) *app.InboundResult
}

type WebhookHandler struct {
	appService        InboundProcessor
	validator         twilioclient.RequestValidator
	webhookURL        string
	validateSignature bool
	logger            *slog.Logger
}

// NewWebhookHandler builds the webhook transport. An empty authToken
// disables signature validation.
func NewWebhookHandler(appService InboundProcessor, authToken, webhookURL string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		appService:        appService,
		validator:         twilioclient.NewRequestValidator(authToken),
		webhookURL:        webhookURL,
		validateSignature: authToken != "",
		logger:            logger.With("component", "webhook_handler"),
	}
}

// Router returns the service's HTTP routes.
func (h *WebhookHandler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	r.Use(chi_middleware.RealIP)
	r.Use(chi_middleware.Recoverer)
	r.Post("/", h.HandleInbound)
	r.Get("/healthz", h.HandleHealthz)
	return r
}

// HandleInbound receives message webhooks from the messaging provider.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		logger.WarnContext(ctx, "Failed to parse webhook form body", "error", err)
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}

	if h.validateSignature && !h.requestIsValid(r) {
		logger.WarnContext(ctx, "Rejected webhook with invalid signature", "remote_addr", r.RemoteAddr)
		http.Error(w, "Invalid webhook signature", http.StatusBadRequest)
		return
	}

	msg, err := domain.NewInboundMessage(r.PostForm)
	if err != nil {
		logger.WarnContext(ctx, "Failed to construct inbound message", "error", err)
		http.Error(w, "Invalid webhook payload", http.StatusBadRequest)
		return
	}

	result := h.appService.HandleInbound(ctx, msg)

	switch result.Status {
	case app.ResultRateLimited:
		w.Header().Set("Retry-After", strconv.FormatInt(result.RetryAfter.Milliseconds(), 10))
		w.WriteHeader(http.StatusTooManyRequests)
	case app.ResultInvalid:
		h.renderTwiML(ctx, w, http.StatusBadRequest, result.Messages, logger)
	default:
		h.renderTwiML(ctx, w, http.StatusOK, result.Messages, logger)
	}
}

// HandleHealthz reports liveness.
func (h *WebhookHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": "complaint_gateway"}); err != nil {
		h.logger.Warn("Failed to write healthz response", "error", err)
	}
}

func (h *WebhookHandler) requestIsValid(r *http.Request) bool {
	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	url := h.webhookURL
	if url == "" {
		url = "https://" + r.Host + r.URL.RequestURI()
	}
	return h.validator.Validate(url, params, r.Header.Get(signatureHeader))
}

func (h *WebhookHandler) renderTwiML(ctx context.Context, w http.ResponseWriter, status int, messages []string, logger *slog.Logger) {
	verbs := make([]twiml.Element, 0, len(messages))
	for _, message := range messages {
		verbs = append(verbs, &twiml.MessagingMessage{Body: message})
	}

	doc, err := twiml.Messages(verbs)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to render TwiML response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(doc)); err != nil {
		logger.WarnContext(ctx, "Failed to write TwiML response", "error", err)
	}
}
