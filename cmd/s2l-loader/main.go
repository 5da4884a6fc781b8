package main

import "github.com/python313again/s2l-loader/cmd/s2l-loader/cmd"

func main() {
	cmd.Execute()
}
