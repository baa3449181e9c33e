package main

import "github.com/CandyFlex/pinch/cmd"

func main() {
	cmd.Execute()
}
