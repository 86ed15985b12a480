// Package sms carries peer-to-peer credit notifications over a text channel
// and turns inbound ones into ledger credits.
package sms

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrMalformed is returned for bodies that are not credit notifications.
var ErrMalformed = errors.New("not a credit notification")

var creditPattern = regexp.MustCompile(`^([0-9]{10}) has sent you Rs\.([0-9]{1,9})(?: #([A-Za-z0-9-]+)\.([A-Za-z0-9_-]+))?$`)

// Message is one text as stored in an inbox.
type Message struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// Credit is a parsed credit notification.
type Credit struct {
	Sender string
	Amount int64
	Ref    string
	Sig    string
}

// Signed reports whether the body carried a receipt.
func (c Credit) Signed() bool {
	return c.Ref != "" && c.Sig != ""
}

// Body renders "<sender> has sent you Rs.<amount>".
func Body(sender string, amount int64) string {
	return fmt.Sprintf("%s has sent you Rs.%d", sender, amount)
}

// Parse extracts a credit from body.
func Parse(body string) (Credit, error) {
	m := creditPattern.FindStringSubmatch(body)
	if m == nil {
		return Credit{}, ErrMalformed
	}
	amount, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Credit{}, ErrMalformed
	}
	return Credit{Sender: m[1], Amount: amount, Ref: m[3], Sig: m[4]}, nil
}

// Signer appends and checks HMAC receipts. A nil Signer signs nothing and
// accepts everything.
type Signer struct {
	key []byte
}

// NewSigner returns nil for an empty key.
func NewSigner(key string) *Signer {
	if key == "" {
		return nil
	}
	return &Signer{key: []byte(key)}
}

// Body renders the notification, with a receipt when s is non-nil.
func (s *Signer) Body(sender, recipient string, amount int64, ref string) string {
	plain := Body(sender, amount)
	if s == nil || ref == "" {
		return plain
	}
	return plain + " #" + ref + "." + s.sign(sender, recipient, amount, ref)
}

// Verify checks that c was signed for recipient.
func (s *Signer) Verify(c Credit, recipient string) bool {
	if s == nil {
		return true
	}
	if !c.Signed() {
		return false
	}
	want := s.sign(c.Sender, recipient, c.Amount, c.Ref)
	return hmac.Equal([]byte(want), []byte(c.Sig))
}

func (s *Signer) sign(sender, recipient string, amount int64, ref string) string {
	mac := hmac.New(sha256.New, s.key)
	fmt.Fprintf(mac, "%s|%s|%d|%s", sender, recipient, amount, ref)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
