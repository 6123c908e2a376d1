// Package domain defines the core types shared by every ringchat component.
//
// It has no I/O dependencies. This package contains:
//
//   - Node and LeaderState: ring membership and leadership views
//   - Message: the closed set of wire envelopes with Encode/Decode
//   - EventLogEntry: the audit record appended for coordinated events
//   - Session: the data carried by a logged-in client
//   - Errors: coded errors whose messages double as wire reasons
package domain
