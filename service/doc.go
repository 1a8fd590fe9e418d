// Package service is the only write path into the book. It orders
// commands, journals them, applies them to the engine and custody vault,
// and records the resulting events in the outbox. It also owns recovery
// (snapshot load plus journal replay) and the periodic snapshot job.
package service
