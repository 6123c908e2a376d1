// Package token provides random secrets and the two hash schemes ringchat
// stores: SHA-256 for admin tokens and Argon2id for user passwords.
package token
