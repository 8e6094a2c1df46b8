package main

import "connectorctl/cmd"

// version is stamped by release builds: -ldflags "-X main.version=1.2.3".
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
