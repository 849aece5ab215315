package main

import "github.com/oshokin/smart-alarm/cmd/alarm-ctl/cmd"

func main() {
	cmd.Execute()
}
