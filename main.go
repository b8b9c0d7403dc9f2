package main

import "github.com/spendcap/spendcap/cmd"

func main() {
	cmd.Execute()
}
