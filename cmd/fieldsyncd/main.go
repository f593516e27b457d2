// Command fieldsyncd runs the fieldsync daemon with the default configuration
// search path. It is the binary service managers should launch.
package main

import (
	"context"
	"flag"
	"log"

	"fieldsync/internal/config"
	"fieldsync/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override logging.level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("fieldsyncd: %v", err)
	}
}
