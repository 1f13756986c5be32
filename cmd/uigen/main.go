package main

import "uistudio/internal/cli"

func main() {
	cli.Execute()
}
