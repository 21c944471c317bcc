package dispatch

import "strings"

// digitsOf strips every non-digit rune.
func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeE164 converts a US phone number to E.164 best-effort:
// 10 digits gain a +1 prefix, 11 digits with a leading 1 gain a +, and
// anything already in +digits form (or unrecognized) passes through.
func NormalizeE164(input string) string {
	val := strings.TrimSpace(input)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "+") && digitsOf(val) == val[1:] {
		return val
	}
	digits := digitsOf(val)
	switch {
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits
	}
	return val
}

// NormalizePhone10 reduces a phone number to its bare 10-digit US form,
// which some voicemail providers require. Shorter inputs pass through as
// their digit string.
func NormalizePhone10(input string) string {
	d := digitsOf(input)
	if len(d) == 11 && strings.HasPrefix(d, "1") {
		return d[1:]
	}
	if len(d) >= 10 {
		return d[len(d)-10:]
	}
	return d
}
