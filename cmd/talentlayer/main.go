// Command talentlayer drives TalentLayer escrow from the command line and serves it over HTTP and MCP.
package main

import (
	"os"
)

func main() {
	if err := newApp().rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
