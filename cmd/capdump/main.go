// Package main provides the capdump CLI tool for printing the records of
// packet capture files, compressed or not, local or remote.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
