package main

import "github.com/khanhnv2901/seca-markup/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
