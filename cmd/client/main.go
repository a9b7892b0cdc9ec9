package main

import (
	"context"
	"log"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/cli"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/config"
)

func main() {
	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(context.Background())
}
