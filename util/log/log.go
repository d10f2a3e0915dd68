//go:build !release

// Package log wraps the standard logger so the release build can redirect output
// to a rotating file without touching call sites.
package log

import (
	"log"
	"sync/atomic"
)

var verbose atomic.Bool

// SetVerbose enables or disables debug output.
func SetVerbose(v bool) {
	verbose.Store(v)
}

// Print calls the standard log.Print()
func Print(v ...interface{}) {
	log.Print(v...)
}

// Printf calls the standard log.Printf()
func Printf(format string, v ...interface{}) {
	log.Printf(format, v...)
}

// Println calls the standard log.Println()
func Println(v ...interface{}) {
	log.Println(v...)
}

// Fatal calls the standard log.Fatal()
func Fatal(v ...interface{}) {
	log.Fatal(v...)
}

// Fatalf calls the standard log.Fatalf()
func Fatalf(format string, v ...interface{}) {
	log.Fatalf(format, v...)
}

// Debug calls the standard log.Print() with a [DEBUG] prefix when verbose output is on.
func Debug(v ...interface{}) {
	if !verbose.Load() {
		return
	}
	log.Print(append([]interface{}{"[DEBUG] "}, v...)...)
}

// Debugf calls the standard log.Printf() with a [DEBUG] prefix when verbose output is on.
func Debugf(format string, v ...interface{}) {
	if !verbose.Load() {
		return
	}
	log.Printf("[DEBUG] "+format, v...)
}
