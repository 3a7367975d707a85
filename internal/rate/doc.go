// Package rate is the Redis-backed login throttle. Counters live at
// <prefix>:lu:<lowercased username> and, when IP throttling is on,
// <prefix>:li:<ip>. Each counter's window starts at its first failure.
package rate
