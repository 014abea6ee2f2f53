package main

import (
	"fmt"
	"os"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "trainerctl:", err)
		os.Exit(1)
	}
}
