// Package shutdown coordinates an orderly engine shutdown through a fixed
// sequence of phases, and tracks in-flight operations so a shutdown
// waits for them to drain before tearing down storage.
package shutdown
