// Command farmctl talks to the farming assistant from a terminal: it asks
// one-off questions, manages the inference credentials and lists the quick
// questions.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
