package main

import "github.com/oshokin/smart-alarm/cmd/smart-alarm/cmd"

func main() {
	cmd.Execute()
}
