// Package main is the hazard command itself.
package main

import (
	"fmt"
	"os"

	"github.com/babyproofxr/hazard/cli"
)

func main() {
	if err := cli.NewApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
