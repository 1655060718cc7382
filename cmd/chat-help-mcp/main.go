// Command chat-help-mcp starts the MCP HTTP server.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.WithError(err).Error("chat-help-mcp exited")
		os.Exit(1)
	}
}
