// Command pollctl is a terminal client for the live polls API.
//
//	pollctl create -q "Lunch?" -o Tacos -o Ramen --email me@example.com
//	pollctl vote <poll-id> --option 2
//	pollctl watch <poll-id>
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
