// Package main is the livestream-service entry point (HTTP + WebSocket).
package main

import (
	"log"

	"github.com/parishops/livestream-service/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
