package main

import "github.com/baiqidi/overlay-sched/cmd"

func main() {
	cmd.Execute()
}
