package main

import "github.com/charliek/herolog/internal/cli"

func main() {
	cli.Execute()
}
