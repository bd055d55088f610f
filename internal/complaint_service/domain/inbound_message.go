package domain

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// DomesticCountryCode is the only country calling code complaints can be
// filed for. Numbers outside it are categorically rejected.
const DomesticCountryCode int32 = 1

const defaultRegion = "US"

const (
	mediaContentTypeKey = "MediaContentType"
	mediaURLKey         = "MediaUrl"
)

// MIMETypeVCard is the contact-card media type extracted in attachment mode.
const MIMETypeVCard = "text/x-vcard"

var validate = validator.New()

// Attachment is one (content type, URL) media pair from the webhook payload,
// in payload order.
type Attachment struct {
	ContentType string `validate:"required"`
	URL         string `validate:"required,url"`
}

// InboundMessage is an SMS received from the messaging provider's webhook.
// Immutable once constructed.
type InboundMessage struct {
	ID uuid.UUID

	From        *phonenumbers.PhoneNumber `validate:"required"`
	FromCity    string
	FromState   string
	FromZip     string
	FromCountry string

	To        *phonenumbers.PhoneNumber `validate:"required"`
	ToCity    string
	ToState   string
	ToZip     string
	ToCountry string

	Body        string
	NumMedia    int          `validate:"gte=0"`
	Attachments []Attachment `validate:"dive"`
}

// NewInboundMessage builds an InboundMessage from the parsed webhook form
// body. The attachment list is built once here so later consumers never
// pattern-match raw payload keys.
func NewInboundMessage(form url.Values) (*InboundMessage, error) {
	from, err := phonenumbers.Parse(form.Get("From"), defaultRegion)
	if err != nil {
		return nil, fmt.Errorf("parse From number %q: %w", form.Get("From"), err)
	}
	to, err := phonenumbers.Parse(form.Get("To"), defaultRegion)
	if err != nil {
		return nil, fmt.Errorf("parse To number %q: %w", form.Get("To"), err)
	}

	numMedia := 0
	if raw := form.Get("NumMedia"); raw != "" {
		numMedia, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse NumMedia %q: %w", raw, err)
		}
	}

	attachments := make([]Attachment, 0, numMedia)
	for i := 0; i < numMedia; i++ {
		attachments = append(attachments, Attachment{
			ContentType: form.Get(fmt.Sprintf("%s%d", mediaContentTypeKey, i)),
			URL:         form.Get(fmt.Sprintf("%s%d", mediaURLKey, i)),
		})
	}

	msg := &InboundMessage{
		ID:          uuid.New(),
		From:        from,
		FromCity:    form.Get("FromCity"),
		FromState:   form.Get("FromState"),
		FromZip:     form.Get("FromZip"),
		FromCountry: form.Get("FromCountry"),
		To:          to,
		ToCity:      form.Get("ToCity"),
		ToState:     form.Get("ToState"),
		ToZip:       form.Get("ToZip"),
		ToCountry:   form.Get("ToCountry"),
		Body:        form.Get("Body"),
		NumMedia:    numMedia,
		Attachments: attachments,
	}

	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("invalid inbound message: %w", err)
	}
	if msg.NumMedia != len(msg.Attachments) {
		return nil, fmt.Errorf("inbound message declares %d media items but carries %d", msg.NumMedia, len(msg.Attachments))
	}
	return msg, nil
}

// FromNational returns the sender's national significant number, the key
// used for rate limiting and diagnostics.
func (m *InboundMessage) FromNational() string {
	return phonenumbers.GetNationalSignificantNumber(m.From)
}

// FromCountryCode returns the sender's country calling code.
func (m *InboundMessage) FromCountryCode() int32 {
	return m.From.GetCountryCode()
}

// AttachmentsOf filters attachments by content type, preserving order.
func (m *InboundMessage) AttachmentsOf(contentType string) []Attachment {
	var out []Attachment
	for _, a := range m.Attachments {
		if mediaTypeOf(a.ContentType) == contentType {
			out = append(out, a)
		}
	}
	return out
}
