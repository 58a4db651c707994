package main

import "github.com/KaramelBytes/recoveryplot/cmd"

func main() {
	cmd.Execute()
}
