// Command glacier-restager requests asynchronous retrieval of archived
// objects, one inventory partition at a time.
package main

import (
	"fmt"
	"os"

	"github.com/eunmann/glacier-restager/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
