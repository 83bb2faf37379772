// Command havenctl is the operations CLI: incident oversight against a
// running API server and schema migration management.
package main

import (
	"os"

	"github.com/havenloop/haven/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
