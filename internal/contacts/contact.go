package contacts

import (
	"strings"
)

// Column names of the persisted collections.
const (
	ColumnName  = "influencer_name"
	ColumnEmail = "email"
)

// UnknownName is used when a contact has no usable display name.
const UnknownName = "Unknown"

// DefaultHeader is the schema written for collections created from scratch.
var DefaultHeader = []string{ColumnName, ColumnEmail}

// Contact is a campaign recipient. Email is normalized and unique within a Set.
type Contact struct {
	Email string
	Name  string
	// Extra holds the remaining source columns keyed by header name.
	Extra map[string]string
}

// NormalizeEmail returns the comparison form of an address: trimmed and lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DisplayName returns the contact name, or UnknownName when it is blank.
func (c Contact) DisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return UnknownName
}

func (c Contact) clone() Contact {
	out := c
	if c.Extra != nil {
		out.Extra = make(map[string]string, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Set is an ordered collection of contacts keyed by normalized email.
// A Set returned by this package is a snapshot; operations that change
// membership return a new Set.
type Set struct {
	header   []string
	contacts []Contact
	index    map[string]int
}

// NewSet returns an empty Set with the given header.
// A nil or empty header falls back to DefaultHeader.
func NewSet(header []string) *Set {
	if len(header) == 0 {
		header = DefaultHeader
	}
	h := make([]string, len(header))
	copy(h, header)
	return &Set{
		header: h,
		index:  make(map[string]int),
	}
}

// add appends c unless its email is blank or already present.
// It reports whether c was added.
func (s *Set) add(c Contact) bool {
	c.Email = NormalizeEmail(c.Email)
	if c.Email == "" {
		return false
	}
	if _, ok := s.index[c.Email]; ok {
		return false
	}
	s.index[c.Email] = len(s.contacts)
	s.contacts = append(s.contacts, c.clone())
	return true
}

// upsert replaces the contact with the same email, or appends it.
func (s *Set) upsert(c Contact) {
	c.Email = NormalizeEmail(c.Email)
	if c.Email == "" {
		return
	}
	if i, ok := s.index[c.Email]; ok {
		s.contacts[i] = c.clone()
		return
	}
	s.add(c)
}

// Len returns the number of contacts.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.contacts)
}

// Header returns a copy of the collection schema.
func (s *Set) Header() []string {
	h := make([]string, len(s.header))
	copy(h, s.header)
	return h
}

// Contacts returns a copy of the contacts in load order.
func (s *Set) Contacts() []Contact {
	if s == nil {
		return nil
	}
	out := make([]Contact, len(s.contacts))
	for i, c := range s.contacts {
		out[i] = c.clone()
	}
	return out
}

// Emails returns the normalized emails in load order.
func (s *Set) Emails() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.contacts))
	for i, c := range s.contacts {
		out[i] = c.Email
	}
	return out
}

// Contains reports whether email (any case) is a member.
func (s *Set) Contains(email string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[NormalizeEmail(email)]
	return ok
}

// Get returns the contact for email (any case).
func (s *Set) Get(email string) (Contact, bool) {
	if s == nil {
		return Contact{}, false
	}
	i, ok := s.index[NormalizeEmail(email)]
	if !ok {
		return Contact{}, false
	}
	return s.contacts[i].clone(), true
}

// Migrate removes every contact of pending whose email is in emails and returns
// the remaining pending collection together with the removed contacts, both in
// load order. Emails that are not pending are ignored, so migrating the same
// input twice is a no-op the second time. pending is not modified.
func Migrate(emails []string, pending *Set) (*Set, []Contact) {
	wanted := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if n := NormalizeEmail(e); n != "" {
			wanted[n] = struct{}{}
		}
	}

	if pending == nil {
		return NewSet(nil), nil
	}

	remaining := NewSet(pending.header)
	var delta []Contact
	for _, c := range pending.contacts {
		if _, ok := wanted[c.Email]; ok {
			delta = append(delta, c.clone())
			continue
		}
		remaining.add(c)
	}
	return remaining, delta
}
