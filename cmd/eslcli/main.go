package main

import "github.com/atomscat/softswitch-gateway/cmd/eslcli/cmd"

func main() {
	cmd.Execute()
}
