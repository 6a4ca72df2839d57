// Package contacts owns the two persisted contact collections of a campaign:
// the pending set (contacts that have not replied yet) and the responded set
// (contacts whose reply has been matched).
//
// Both collections are CSV files with at least the columns influencer_name and
// email. Email is the identity key; it is compared lower-cased and trimmed.
// Columns other than those two are carried through migrations unchanged.
//
// Every write replaces the whole file: the new content goes to a temporary file
// in the same directory which is synced and renamed over the target, so readers
// never observe a partially written collection. Writes are serialized by the
// Store.
//
// A migration is committed by writing the responded file first and the pending
// file second. A crash between the two leaves the contact in both files, which
// the next commit absorbs; a contact is never missing from both.
package contacts
