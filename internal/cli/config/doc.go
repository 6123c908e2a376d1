// Package config stores ringchat-admin connection profiles.
//
// The profile file lives at ~/.ringchat/admin.yaml with mode 0600, since
// it may hold the admin token. Flags and environment variables override
// whatever the profile says.
package config
