// Package monitor orchestrates the netsentry subsystems. It serializes
// discovery sweeps, publishes results to the store, drives the health
// sampling loop and fans computed snapshots out to the alert engine and
// registered listeners.
package monitor
