package main

import "github.com/isdelr/teambuilder-be/cmd"

func main() {
	cmd.Execute()
}
