// Package config loads netsentryd configuration from a YAML file.
//
// Sections:
//   - scan    — sweep range, probe strategy, concurrency, timeouts
//   - health  — sample target, interval, window/batch sizes, policy overrides
//   - wifi    — wireless enumeration timeout
//   - server  — HTTP port and API-key auth
//   - alerts  — rule conditions and webhook targets
//
// Load(path) applies defaults before unmarshalling, then validates. Watch
// re-loads the file on change and hands valid configs to a callback.
package config
