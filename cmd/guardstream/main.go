package main

import "github.com/ppiankov/guardstream/internal/cli"

func main() {
	cli.Execute()
}
