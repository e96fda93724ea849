package main

import "github.com/oshokin/sos-laser/cmd/sos-laser/cmd"

func main() {
	cmd.Execute()
}
