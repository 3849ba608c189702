// The main package for the quote-harvester executable.
package main

import (
	"os"

	"github.com/JakeFAU/quote-harvester/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
