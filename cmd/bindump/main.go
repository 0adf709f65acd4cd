package main

import "github.com/blacktop/bindump/cmd/bindump/cmd"

func main() {
	cmd.Execute()
}
