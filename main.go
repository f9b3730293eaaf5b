package main

import (
	"os"

	"github.com/hexebench/hexebench/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
