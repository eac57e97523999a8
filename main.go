package main

import (
	"context"
	"flag"
	"log"
	"runtime/debug"

	"github.com/ottkit/dropout/cmd/app"
	"github.com/ottkit/dropout/internal/config"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("FATAL: Recovered from panic in main: %v\n", r)
			debug.PrintStack()
		}
	}()
	var configPath string
	flag.StringVar(&configPath, "config", "/data", "path to the data folder")
	flag.Parse()

	if err := config.SetConfigPath(configPath); err != nil {
		log.Fatal(err)
	}
	config.Get()
	ctx := context.Background()
	if err := app.Start(ctx, flag.Args()); err != nil {
		log.Fatal(err)
	}
}
