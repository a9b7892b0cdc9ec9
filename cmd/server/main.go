package main

import (
	"context"
	"log"

	"github.com/spcopeland72-crypto/canny-carrot/internal/server"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()
	app, err := server.NewApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(context.Background())
}
