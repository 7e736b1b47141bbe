// Package wifi normalizes OS-reported nearby-network records into a sorted
// list. One parser exists per platform tool (netsh, nmcli, iwlist, airport);
// the command set is picked once at construction. Malformed blocks are
// skipped, and "tool missing" is a distinct ErrUnavailable rather than an
// empty result.
package wifi
