package main

import "github.com/papapumpkin/buildgraph/cmd"

func main() {
	cmd.Execute()
}
