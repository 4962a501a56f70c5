package main

import "github.com/flagcore/go-server-sdk/cmd"

func main() {
	cmd.Execute()
}
