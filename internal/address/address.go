// Package address normalizes phone numbers and the participant lists of
// multi-party threads.
package address

import (
	"slices"
	"strings"

	"golang.org/x/text/width"
)

const (
	// Separator joins the participants of a multi-party thread.
	Separator = ";"

	// PlaceholderAddress identifies a multimedia thread whose participants
	// could not be resolved.
	PlaceholderAddress = "MMS Group"

	// PlaceholderName is the display name paired with PlaceholderAddress.
	PlaceholderName = "Unknown group"

	// UnknownName is shown for rows that carry no address at all.
	UnknownName = "Unknown"

	insertToken = "insert-address-token"
)

// Normalize strips everything but digits and '+'. Full-width digits are
// folded to ASCII first. Normalize(Normalize(n)) == Normalize(n).
func Normalize(n string) string {
	n = width.Fold.String(n)
	var b strings.Builder
	b.Grow(len(n))
	for _, r := range n {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsGateway reports whether a is an email-to-SMS gateway address.
func IsGateway(a string) bool {
	return strings.Contains(a, "@")
}

// Destination returns the form of a used when sending. Gateway addresses
// pass through unmodified.
func Destination(a string) string {
	if IsGateway(a) {
		return a
	}
	return Normalize(a)
}

// IsPlaceholder reports whether a carries no usable participant identity.
func IsPlaceholder(a string) bool {
	return strings.TrimSpace(a) == "" || a == PlaceholderAddress
}

// Split breaks a raw participant list into its members. Blank entries and
// insert tokens are dropped.
func Split(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, Separator) {
		p = strings.TrimSpace(p)
		if p == "" || p == insertToken {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Join is the inverse of Split.
func Join(parts []string) string {
	return strings.Join(parts, Separator)
}

// Canonical returns the order-independent key for a participant set: each
// member in destination form, deduplicated and sorted.
func Canonical(parts []string) string {
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if k := Destination(strings.TrimSpace(p)); k != "" && k != insertToken {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return Join(slices.Compact(keys))
}
