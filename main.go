package main

import "github.com/8b-is/feedgate/cmd"

func main() {
	cmd.Execute()
}
