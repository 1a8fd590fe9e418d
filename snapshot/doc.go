// Package snapshot persists a point-in-time copy of the book and custody
// vault together with the journal and event sequence numbers it covers.
// Recovery loads the newest snapshot and replays the journal after it.
package snapshot
