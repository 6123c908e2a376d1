// Package connection talks to a ringchat node's control plane.
//
// Admin operations go through the Connect AdminService with a bearer
// token; the health probe is a plain GET.
package connection
