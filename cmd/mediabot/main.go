// Package main provides the entry point for the mediabot ingestion and
// media-delivery daemon.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
