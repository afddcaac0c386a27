package main

import "github.com/phaserhq/phaser/cmd"

func main() {
	cmd.Execute()
}
