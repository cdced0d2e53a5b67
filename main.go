// The main package for the linkunfurler executable.
package main

import (
	"github.com/JakeFAU/link-unfurler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
