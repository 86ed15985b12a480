// Package txlog renders the human readable transaction log lines shared by
// the client ledger and the sandbox backend.
package txlog

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultPrefix is the dialling prefix prepended to 10 digit numbers.
const DefaultPrefix = "+91"

// Formatter renders log entries for a given dialling prefix.
type Formatter struct {
	Prefix string
}

// Default uses DefaultPrefix.
var Default = Formatter{Prefix: DefaultPrefix}

// Address returns the dialable form of a 10 digit number.
func (f Formatter) Address(num string) string {
	return f.prefix() + num
}

// Sent renders "[19th Oct 2026, 3:04 pm] Send Rs.30 to +919876543210".
func (f Formatter) Sent(at time.Time, amount int64, to string) string {
	return fmt.Sprintf("[%s] Send Rs.%d to %s", Stamp(at), amount, f.Address(to))
}

// Received renders "[19th Oct 2026, 3:04 pm] Received Rs.50 from +919123456780".
func (f Formatter) Received(at time.Time, amount int64, from string) string {
	return fmt.Sprintf("[%s] Received Rs.%d from %s", Stamp(at), amount, f.Address(from))
}

func (f Formatter) prefix() string {
	if f.Prefix == "" {
		return DefaultPrefix
	}
	return f.Prefix
}

// Stamp formats t as "<ordinal day> Jan 2006, 3:04 pm".
func Stamp(t time.Time) string {
	return Ordinal(t.Day()) + t.Format(" Jan 2006, 3:04 pm")
}

// Ordinal returns n with its English ordinal suffix.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
