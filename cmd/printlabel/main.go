package main

import "github.com/ketutoka/printlabel/cmd/printlabel/cmd"

func main() {
	cmd.Execute()
}
