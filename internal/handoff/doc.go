// Package handoff runs the two-party confirmation protocol that moves a book
// from one person to the next.
//
// A handoff is created by Initiate, which puts the book in transit, and is
// closed by the second of two Confirm calls. Closing either returns the book
// to its owner or starts a loan for the receiver; when the owner flagged the
// book as a gift, closing hands ownership over instead. Every read and write
// of a confirmation happens inside one store transaction, so the closing
// branch runs exactly once per handoff.
package handoff
