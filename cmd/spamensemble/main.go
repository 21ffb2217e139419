// Command spamensemble trains the four-model spam ensemble, classifies
// messages from the command line and serves the detection API.
package main

import (
	"fmt"
	"os"
)

var revision = "local"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
