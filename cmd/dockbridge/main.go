package main

import (
	"os"
)

// version is set during build with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd(version).Execute(); err != nil {
		os.Exit(1)
	}
}
