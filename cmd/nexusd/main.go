package main

import "github.com/jasperfordesq-ai/nexus-v1-sub029/cmd/nexusd/cmd"

func main() {
	cmd.Execute()
}
