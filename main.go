package main

import "tiktokzone/cmd"

func main() {
	cmd.Execute()
}
