// Package replies turns raw sender strings observed in the mailbox into the set
// of pending contact emails that have replied.
package replies

import (
	"sort"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/teemow/outreach/internal/contacts"
)

// Event is one observed inbound message, reduced to its normalized sender.
type Event struct {
	Sender string
	Cycle  uint64
}

// NormalizeSender extracts the bare address of a From header value and
// lower-cases it. It accepts "Name <addr>", "<addr>" and a plain address.
// An empty result means no address could be found.
func NormalizeSender(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(raw); err == nil {
		return contacts.NormalizeEmail(addr.Address)
	}

	// Loose fallback for headers that RFC 5322 parsing rejects,
	// e.g. unquoted display names containing punctuation.
	if i := strings.LastIndex(raw, "<"); i >= 0 {
		addr := raw[i+1:]
		if j := strings.Index(addr, ">"); j >= 0 {
			addr = addr[:j]
		}
		return contacts.NormalizeEmail(addr)
	}
	if strings.Contains(raw, "@") && !strings.ContainsAny(raw, " \t") {
		return contacts.NormalizeEmail(raw)
	}
	return ""
}

// Events normalizes raw senders into events tagged with cycle. Senders without
// an address are dropped and each sender appears once, in first-seen order.
func Events(raw []string, cycle uint64) []Event {
	seen := make(map[string]struct{}, len(raw))
	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		s := NormalizeSender(r)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		events = append(events, Event{Sender: s, Cycle: cycle})
	}
	return events
}

// Match returns the sorted, de-duplicated emails of pending contacts that
// appear among the raw senders. Senders that are not pending are ignored.
func Match(raw []string, pending *contacts.Set) []string {
	var matched []string
	for _, e := range Events(raw, 0) {
		if pending.Contains(e.Sender) {
			matched = append(matched, e.Sender)
		}
	}
	sort.Strings(matched)
	return matched
}
