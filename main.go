package main

import "github.com/pstuifzand/sitetree/internal/cli"

func main() {
	cli.Execute()
}
