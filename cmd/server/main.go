package main

import (
	"context"
	"log"
	"os"

	"github.com/fastid/fastid/internal/server"
	"github.com/fastid/fastid/internal/server/config"
)

func main() {

	ctx := context.Background()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	err = app.Run(ctx)
	app.Close(ctx)
	if err != nil {
		os.Exit(1)
	}

}
