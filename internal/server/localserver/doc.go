// Package localserver provides the local management socket.
//
// It listens on a Unix domain socket and speaks a line protocol: one
// command per line, answered by zero or more output lines and a final
// "OK" or "ERR <message>" line. Access is controlled by file system
// permissions on the socket, so no admin token is required:
//
//	status        node id, leader and ring members
//	users         connected usernames
//	elect         start an election
//	loglevel [L]  show or set the log level
//	reload        re-read the configuration file
//	shutdown      stop the server gracefully
//
// Try it with: nc -U /run/ringchat/node.sock
package localserver
