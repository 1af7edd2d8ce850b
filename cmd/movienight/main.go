package main

import "github.com/mcoot/movienight/internal/cli"

func main() {
	cli.Execute()
}
