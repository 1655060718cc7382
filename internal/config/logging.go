package config

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging applies the level and format to the standard logger. In stdio mode stdout carries
// the protocol, so logs go to stderr.
func ConfigureLogging(c Config) error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(LogOutput(c))
	return nil
}

// LogOutput is where ConfigureLogging sends log lines.
func LogOutput(c Config) io.Writer {
	if c.Stdio {
		return os.Stderr
	}
	return os.Stdout
}
