package main

import "github.com/example/bookhub/internal/interfaces/cli"

func main() {
	cli.Execute()
}
