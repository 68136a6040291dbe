package main

import "github.com/rustyeddy/tradefuse/internal/cli"

func main() {
	cli.Execute()
}
