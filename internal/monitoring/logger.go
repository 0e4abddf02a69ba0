package monitoring

import (
	"io"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetOutput points Logf at a standard logger writing to w with microsecond
// timestamps. A nil writer mutes logging.
func SetOutput(w io.Writer) {
	if w == nil {
		SetLogger(nil)
		return
	}
	l := log.New(w, "", log.LstdFlags|log.Lmicroseconds)
	Logf = l.Printf
}
