package main

import (
	"fmt"
	"os"

	// Embedded zone database for hosts without /usr/share/zoneinfo.
	_ "time/tzdata"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
