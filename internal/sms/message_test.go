package sms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlainBody(t *testing.T) {
	c, err := Parse("9876543210 has sent you Rs.50")
	require.NoError(t, err)
	assert.Equal(t, Credit{Sender: "9876543210", Amount: 50}, c)
	assert.False(t, c.Signed())
}

func TestParseRejectsDeviations(t *testing.T) {
	for _, body := range []string{
		"",
		"9876543210 has sent you Rs. 50",
		"9876543210 has sent you Rs.50 ",
		"Hi! 9876543210 has sent you Rs.50",
		"9876543210 has sent you Rs.-5",
		"987654321 has sent you Rs.50",
		"9876543210 has sent you Rs.5.5",
		"9876543210 has sent you Rs.9223372036854775807",
		"9876543210 has sent you Rs.1000000000",
	} {
		_, err := Parse(body)
		assert.ErrorIs(t, err, ErrMalformed, body)
	}
}

func TestSignerRoundTrip(t *testing.T) {
	s := NewSigner("k1")
	body := s.Body("9876543210", "9123456780", 75, "ref-1")
	assert.Regexp(t, `^9876543210 has sent you Rs\.75 #ref-1\.[A-Za-z0-9_-]+$`, body)

	c, err := Parse(body)
	require.NoError(t, err)
	assert.True(t, c.Signed())
	assert.True(t, s.Verify(c, "9123456780"))

	assert.False(t, s.Verify(c, "9000000000"), "receipt is bound to its recipient")
	assert.False(t, NewSigner("k2").Verify(c, "9123456780"))

	c.Amount = 750
	assert.False(t, s.Verify(c, "9123456780"))
}

func TestSignerRequiresReceiptWhenKeyed(t *testing.T) {
	c, err := Parse(Body("9876543210", 10))
	require.NoError(t, err)
	assert.False(t, NewSigner("k1").Verify(c, "9123456780"))
}

func TestNilSignerIsPermissive(t *testing.T) {
	var s *Signer
	assert.Nil(t, NewSigner(""))
	assert.Equal(t, "9876543210 has sent you Rs.5", s.Body("9876543210", "9123456780", 5, "ref"))
	assert.True(t, s.Verify(Credit{Sender: "9876543210", Amount: 5}, "9123456780"))
}
