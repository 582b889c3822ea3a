// Package core implements the approval bot's domain logic: field extraction
// from chat messages, document mutation proposals against a repository host,
// the approval gate, and workflow routing.
package core

import (
	"regexp"
	"strings"
)

var (
	keyJunk    = regexp.MustCompile(`[\s_\-]+`)
	mailtoLink = regexp.MustCompile(`mailto:([^|>]+)`)
)

// FieldSet maps normalized field keys to the raw values extracted from one
// message. It is built once per inbound message and not modified afterwards.
type FieldSet map[string]string

// ParseFields extracts "key: value" pairs from free-form message text. Lines
// without a colon are skipped. Keys are normalized by stripping whitespace,
// underscores and dashes and lower-casing, so "Email ID", "email_id" and
// "email-id" all collapse to "emailid". A later line whose normalized key
// collides with an earlier one overwrites it.
func ParseFields(text string) FieldSet {
	fields := make(FieldSet)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, ":") {
			continue
		}
		key, value, _ := strings.Cut(line, ":")
		key = strings.ToLower(keyJunk.ReplaceAllString(key, ""))
		if key == "" {
			continue
		}
		fields[key] = strings.TrimSpace(value)
	}
	return fields
}

// Get returns the value under the first of the given keys that is present and
// non-empty. Synonym keys are resolved by this priority order.
func (f FieldSet) Get(keys ...string) string {
	for _, key := range keys {
		if v := f[key]; v != "" {
			return v
		}
	}
	return ""
}

// Email returns the address under the email-like keys, unwrapping the chat
// link format "<mailto:addr|alias>" when present. A plain value is returned
// verbatim.
func (f FieldSet) Email() string {
	raw := f.Get("emailid", "email")
	if m := mailtoLink.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}
