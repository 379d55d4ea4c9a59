package main

import (
	"os"

	"github.com/conneroisu/hpy/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
