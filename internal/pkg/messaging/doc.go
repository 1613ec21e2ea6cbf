// Package messaging provides a broker-agnostic API for publishing messages.
//
// The goal is to keep business code independent from the underlying messaging
// system (Kafka, NATS, NSQ, Google Pub/Sub, etc). Delivery workers live in
// other services; this package only covers the producing side, so you can swap
// brokers without changing your use-case code.
package messaging
