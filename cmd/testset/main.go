// Command testset saves test-set documents from the command line.
package main

import (
	"errors"
	"fmt"
	"os"
)

// errReported marks failures already described on stderr.
var errReported = errors.New("reported")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
