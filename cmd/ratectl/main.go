package main

import (
	"os"

	"branchrate/internal/ratectl"
)

var version = "dev"

func main() {
	if err := ratectl.Execute(version, os.Stdin, os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
