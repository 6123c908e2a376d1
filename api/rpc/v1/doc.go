// Package rpcv1 defines ringchat's Connect RPC services.
//
// Messages are plain Go structs carried by a JSON codec, so the package
// needs no generated code. Two services are defined:
//
//   - ringchat.admin.v1.AdminService: the operator control plane.
//   - ringchat.peer.v1.PeerService: node-to-node election and heartbeat traffic.
//
// Both follow the layout of connect-go generated code: procedure constants,
// a handler interface with a New...Handler constructor that returns the
// mount path, and a client interface with a New...Client constructor.
package rpcv1
