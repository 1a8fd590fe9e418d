// Package orderbook implements the hint-driven limit order book engine.
//
// Each side of the book is a singly linked list of order nodes stored in
// an id-addressed arena. Id 0 is a reserved anchor whose next always points
// at the list head, so inserts and removals at the head need no special
// casing. Callers supply a locality hint for every insert and cancel, and
// the engine walks at most a fixed number of nodes from it.
//
// The Book is single-writer and deterministic. It never logs, never reads
// asset balances, and moves assets only through the Asset interface.
package orderbook
