// Command tabula is the command-line front end for the tabula engine.
package main

import "github.com/mesh-intelligence/tabula/internal/cli"

func main() {
	cli.Execute()
}
