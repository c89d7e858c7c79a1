// Package events publishes domain events to downstream consumers.
//
// Each topic is a durable RabbitMQ queue fed through the default exchange; bodies are JSON
// and deliveries are persistent. Publishing is best-effort from the caller's point of view:
// a failure is returned so it can be logged, but it never undoes the work that produced the
// event.
//
// When no broker URL is configured New returns a Nop publisher.
package events
