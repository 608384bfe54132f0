package main

import "github.com/keygate/keygate/internal/cli"

func main() {
	cli.Execute()
}
