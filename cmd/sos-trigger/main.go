package main

import "github.com/oshokin/sos-laser/cmd/sos-trigger/cmd"

func main() {
	cmd.Execute()
}
