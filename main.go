package main

import (
	"os"

	"github.com/suyash-mankar/PMIP-BE-sub000/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
