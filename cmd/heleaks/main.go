package main

import "github.com/jhopkins78/he-revenue-leaks/internal/cli"

func main() {
	cli.Execute()
}
