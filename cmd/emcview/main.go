// Command emcview inspects multi-file sparse photon datasets: it indexes
// every frame across the configured photon files, pairs each with its
// detector geometry and renders frames, powder sums and comparisons.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
