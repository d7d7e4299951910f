// Package scheduler hosts the background jobs: the traffic simulator that
// keeps boosted polls lively with synthetic writes, and the expiry sweeper
// that deactivates polls whose TTL has elapsed. Both run on injected clocks
// and isolate per-tick failures so one bad tick never kills the loop.
package scheduler
