package main

import (
	"os"

	"github.com/jazzedu/chapterscribe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
