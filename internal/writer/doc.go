// Package writer persists probability table changes.
//
// The DataPointWriter consumes a feed subscription, collapses changes to
// the latest probability per bucket, and upserts batches into the
// registry store on size or interval. Probabilities are stored as
// integers with 5 decimals (99774 = 0.99774).
package writer
