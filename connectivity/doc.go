// Package connectivity tracks whether the device can reach the network.
//
// A Monitor is an ordinary value: callers create one, start it, subscribe to
// changes and stop it. There is no package-level state, so tests and
// multiple hosts in one process get independent monitors.
package connectivity
