package main

import (
	"fmt"
	"os"
)

// version metadata populated via -ldflags at build time
var (
	version = "dev"
	commit  = ""
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "siolisten: %v\n", err)
		os.Exit(1)
	}
}
