package main

import (
	"danmaku-sync/cmd"
)

func main() {
	cmd.Execute()
}
