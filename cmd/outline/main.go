package main

import (
	"fmt"
	"os"
)

func main() {
	root, a := newRootCmd(os.Stdout)
	if err := execute(root, a); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
