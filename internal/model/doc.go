// Package model implements the Broadcast/Track/Group/Frame data model
// (spec §3, §4.3): the producer/consumer split for every mutable
// entity, cache retention, and the error semantics that make a dropped
// producer or an oversized frame observable to every consumer.
//
// Nothing here knows about the wire or the transport; internal/engine
// drives these types from stream state machines, and internal/origin
// indexes BroadcastConsumer values by path.
package model
