// Package chatserver accepts client websocket connections.
//
// Each connection gets a read goroutine, which runs the login handshake and
// then hands frames to service.ChatService, and a write goroutine that owns
// all writes to the socket. Outbound frames go through a bounded buffer; a
// client that falls behind sees its sends fail and is disconnected by the
// chat service.
package chatserver
