package main

import "github.com/dgrid/dgrid/cmd"

func main() {
	cmd.Execute()
}
