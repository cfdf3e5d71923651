package label

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Request carries the semantic fields of one label. Only the sender fields
// are required; a blank recipient name drops the recipient section and a
// blank shipping code drops the QR section.
type Request struct {
	ID               string `json:"id,omitempty" yaml:"id,omitempty"`
	SenderName       string `json:"sender_name" yaml:"sender_name"`
	SenderPhone      string `json:"sender_phone" yaml:"sender_phone"`
	RecipientName    string `json:"recipient_name,omitempty" yaml:"recipient_name,omitempty"`
	RecipientAddress string `json:"recipient_address,omitempty" yaml:"recipient_address,omitempty"`
	RecipientPhone   string `json:"recipient_phone,omitempty" yaml:"recipient_phone,omitempty"`
	ShippingCode     string `json:"shipping_code,omitempty" yaml:"shipping_code,omitempty"`
	PaperProfile     string `json:"paper_profile,omitempty" yaml:"paper_profile,omitempty"`
	// Format overrides the composer's output format for this request.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// ErrInvalidRequest is matched by every ValidationError.
var ErrInvalidRequest = errors.New("invalid label request")

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid label request: %s %s", e.Field, e.Reason)
}

// Is reports whether target is ErrInvalidRequest.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRequest }

// Normalize trims every text field and converts it to NFC so that visually
// identical input renders identically.
func (r Request) Normalize() Request {
	clean := func(s string) string { return norm.NFC.String(strings.TrimSpace(s)) }
	r.ID = clean(r.ID)
	r.SenderName = clean(r.SenderName)
	r.SenderPhone = clean(r.SenderPhone)
	r.RecipientName = clean(r.RecipientName)
	r.RecipientAddress = clean(r.RecipientAddress)
	r.RecipientPhone = clean(r.RecipientPhone)
	r.ShippingCode = clean(r.ShippingCode)
	r.PaperProfile = strings.ToLower(strings.TrimSpace(r.PaperProfile))
	r.Format = strings.ToLower(strings.TrimSpace(r.Format))
	return r
}

// Validate checks the always-present sender section.
func (r Request) Validate() error {
	var errs []error
	if strings.TrimSpace(r.SenderName) == "" {
		errs = append(errs, &ValidationError{Field: "sender_name", Reason: "is required"})
	}
	if strings.TrimSpace(r.SenderPhone) == "" {
		errs = append(errs, &ValidationError{Field: "sender_phone", Reason: "is required"})
	}
	return errors.Join(errs...)
}

// HasRecipient reports whether the recipient section is rendered.
func (r Request) HasRecipient() bool { return strings.TrimSpace(r.RecipientName) != "" }

// HasShipping reports whether the shipping/QR section is rendered.
func (r Request) HasShipping() bool { return strings.TrimSpace(r.ShippingCode) != "" }

// Identifier returns the request ID, or a short digest of the content when
// no ID was supplied so that distinct labels never share a file name.
func (r Request) Identifier() string {
	if r.ID != "" {
		return r.ID
	}
	h := sha256.New()
	for _, f := range []string{
		r.SenderName, r.SenderPhone, r.RecipientName, r.RecipientAddress,
		r.RecipientPhone, r.ShippingCode, r.PaperProfile,
	} {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
