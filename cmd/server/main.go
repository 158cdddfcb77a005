// Command noteskeeper serves the notes-and-tasks web gateway in front of the backend process.
package main

import (
	"os"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
