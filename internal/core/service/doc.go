// Package service provides the chat-facing services of a ringchat node.
//
// This package contains:
//
//   - Registry: logged-in client sessions indexed by id and username
//   - ChatService: login, broadcast, unicast and disconnect semantics
//   - AdminService: the control-plane operations
//   - Authenticators: the HTTP credential bridge, static demo users and
//     per-username login rate limiting
//
// Every state change runs on the node's event loop. Methods documented as
// loop-only must be called from a task running there; the remaining entry
// points marshal onto the loop themselves.
package service
