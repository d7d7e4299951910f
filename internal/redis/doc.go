// Package redis wraps the go-redis client and hosts the Lua-scripted
// token bucket that rate-limits write traffic per session.
package redis
