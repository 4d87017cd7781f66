package main

import "github.com/mcoot/playerrelay/internal/cli"

func main() {
	cli.Execute()
}
