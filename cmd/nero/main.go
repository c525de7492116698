package main

import "github.com/Geo-fs/NeroAI/cmd/nero/cmd"

func main() {
	cmd.Execute()
}
