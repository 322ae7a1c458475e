package main

import "github.com/metal-toolbox/bootorder/cmd"

func main() {
	cmd.Execute()
}
