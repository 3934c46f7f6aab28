package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kilianp07/gridopf/cmd"
	"github.com/kilianp07/gridopf/core/monitoring"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	defer monitoring.Flush(2 * time.Second)
	defer monitoring.Recover()
	return cmd.Execute()
}
