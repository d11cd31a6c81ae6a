package main

import (
	"os"

	"github.com/rustyeddy/replaytrader/cmd/trader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
