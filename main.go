package main

import "github.com/simonyos/zchat/cmd"

func main() {
	cmd.Execute()
}
