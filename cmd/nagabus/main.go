package main

import (
	"os"

	"github.com/joseph-ayodele/nagabus/internal/command"
)

func main() {
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
