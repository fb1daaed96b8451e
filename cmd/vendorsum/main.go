// Command vendorsum ingests raw inventory files, builds the vendor sales
// summary and exports it.
package main

import (
	"fmt"
	"os"

	"github.com/eunmann/vendorsum/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
