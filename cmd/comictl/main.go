package main

import "github.com/comictl/comictl/cmd/comictl/cmd"

func main() {
	cmd.Execute()
}
