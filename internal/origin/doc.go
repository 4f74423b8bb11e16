// Package origin implements the path-indexed directory of currently
// published broadcasts for one Session: the Session's view of what its
// peer (or its own local publishers) currently offer (spec §4.4).
//
// Grounded on moq-lite/src/model/origin.rs's Origin.publish/consume/
// announced trio: withdraw-then-reannounce on replace, background
// cleanup spawned per publish, and the Live marker's exactly-once
// semantics are all translated from that file's Rust spawn+Lock
// pattern into a goroutine plus sync.Mutex.
package origin
