// Command gobound is the command-line front end for the emulator core: it
// wires a ROM path and a handful of flags into a Console and an SDL2 host
// window.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
