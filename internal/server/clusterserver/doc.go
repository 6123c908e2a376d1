// Package clusterserver carries node-to-node traffic.
//
// The Server exposes ringchat.peer.v1.PeerService over Connect with a JSON
// codec; the Transport is its client side and implements node.Transport.
// Discovery optionally feeds ring membership from memberlist gossip.
package clusterserver
