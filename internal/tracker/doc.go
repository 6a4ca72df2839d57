// Package tracker runs the reply tracking loop of a campaign.
//
// A Tracker repeatedly asks the mail provider for recent senders, matches them
// against the pending contacts and migrates the matches to the responded
// collection. It is an explicit state machine:
//
//	Idle --Start--> Running --cycle error--> Faulted --cycle ok--> Running
//	Running/Faulted --Stop--> Idle
//
// Errors inside a cycle never end the loop. After a failed cycle the loop
// sleeps for an exponential backoff bounded by the interval instead of the full
// interval.
//
// A migration is only considered committed once the contact files are written.
// Writes are retried a bounded number of times; if they still fail, the
// in-memory pending set is not advanced and the uncommitted contacts are carried
// into the next cycle.
package tracker
