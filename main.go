package main

import (
	"github.com/andriy-git/stocksTUI/cmd"
)

func main() {
	cmd.Execute()
}
