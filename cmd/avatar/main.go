// Avatar - loads a humanoid rig, calibrates its arms into a natural rest
// pose and drives idle, blink and talk animation.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
