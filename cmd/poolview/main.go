package main

import (
	"flag"
	"os"

	"poolview/pkg/app"
	"poolview/pkg/common"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.json (default: . and ./config)")
	flag.Parse()

	if err := app.RunAPI(*configPath); err != nil {
		common.GetLogger().Error().Err(err).Msg("poolview exited with error")
		os.Exit(1)
	}
}
