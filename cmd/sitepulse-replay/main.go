// Command sitepulse-replay runs a recorded scenario through a session and
// prints every back-end call as a JSON line.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
