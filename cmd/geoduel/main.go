package main

import "github.com/mcoot/geoduel/internal/cli"

func main() {
	cli.Execute()
}
