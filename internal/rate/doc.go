// Package rate provides Redis-backed fixed-window attempt counters for the login and
// second-factor steps.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - al:  failed logins per normalized email
//   - a2f: failed second-factor codes per identity
//
// # What this package must NOT do
//
//   - Count successful attempts.
//   - Be imported outside the authcore module.
package rate
