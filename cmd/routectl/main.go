package main

import "freightgraph/cmd/routectl/cmd"

func main() {
	cmd.Execute()
}
