// Package walker resolves element paths against a parsed message.
//
// A path names a segment occurrence and, optionally, a field, repetition,
// component and subcomponent. Every index is 1-based:
//
//	PID             first PID segment
//	PID.8           field 8 of the first PID
//	OBX[2].5        field 5 of the second OBX
//	PID.3[2].1      component 1 of the second repetition of PID.3
//	PID.3.4.2       subcomponent 2 of component 4 of PID.3
//	PID-5.1         '-' is accepted after the segment tag
//
// An Index groups segments by tag once per message so that resolving a path
// does not scan the message. Indexes are read-only after construction and
// safe for concurrent use.
package walker
