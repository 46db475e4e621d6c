// Package feed fans probability table changes out to subscribers.
//
// A Feed drains the table's change channel and copies every change into
// one bounded Ring per subscriber (WebSocket clients, the persistence
// writer). A slow subscriber loses its oldest pending changes; it never
// blocks the table or other subscribers.
package feed
