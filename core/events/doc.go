// Package events publishes entitlement snapshots to whoever renders them.
//
// Every publisher implements reconcile.SnapshotPublisher and sends the same
// JSON envelope:
//
//	{"id":"...","type":"entitlements.snapshot","user_id":"u1","occurred_at":"...","snapshot":{...}}
//
// Memory keeps envelopes in process, Redis uses PUBLISH on a channel and
// RabbitMQ publishes to a topic exchange with the routing key
// entitlements.snapshot.<user_id>.
package events
