package main

import "github.com/aegis-gateway/aegis/cmd/aegis-gateway/cmd"

func main() {
	cmd.Execute()
}
