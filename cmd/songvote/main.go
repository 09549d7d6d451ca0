package main

import "github.com/behzadon/songvote/cmd"

func main() {
	cmd.Execute()
}
