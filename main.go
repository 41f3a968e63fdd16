package main

import "github.com/fmuoria/resume-screener/internal/cli"

func main() {
	cli.Execute()
}
