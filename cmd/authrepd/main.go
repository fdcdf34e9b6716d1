// Command authrepd is the standalone host runtime binary (C8): it
// loads a configuration document, binds the extraction engine,
// AuthRep assembler, request filter driver, and config refresher to
// real sockets/Redis/an HTTP client, and serves the filter over
// net/http.
package main

import (
	"fmt"
	"os"

	"github.com/3scale-labs/authrep-filter/cmd/authrepd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
