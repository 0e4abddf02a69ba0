// Package sqlite persists track manager events. It is the data recorder
// backend: a RunRecorder satisfies tracks.Recorder and writes events off the
// frame pass, and EventStore answers queries over recorded runs.
package sqlite
