package main

import (
	"github.com/jrwilson/substrate/cmd"
)

func main() {
	cmd.Execute()
}
