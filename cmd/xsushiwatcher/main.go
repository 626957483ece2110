package main

import (
	"xsushi-ratio-tracker/internal/cli"
)

func main() {
	cli.Execute()
}
