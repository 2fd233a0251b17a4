// Command vrptw solves, benchmarks and checks VRPTW instances in ORTEC format.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
