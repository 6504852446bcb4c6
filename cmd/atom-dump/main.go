// Command atom-dump prints the box tree of an MP4 file along with the
// entry counts of the sample tables. Useful to confirm what the demuxer
// sees in a file that fails to open.
package main

import (
	"fmt"
	"os"

	"github.com/simonhull/alac/internal/m4a"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: atom-dump <file.m4a>")
		os.Exit(1)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := m4a.Dump(os.Stdout, f, os.Args[1]); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
