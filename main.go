package main

import "github.com/naka-gawa/triage-agenda/cmd"

func main() {
	cmd.Execute()
}
