package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bdobrica/Kensa/common/version"
	"github.com/bdobrica/Kensa/internal/kensa/app"
	"github.com/bdobrica/Kensa/internal/kensa/config"
)

func main() {
	fmt.Printf("Kensa %s\n\n", version.Info())

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	kensa, err := app.New(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Kensa: %v\n", err)
		os.Exit(1)
	}
	defer kensa.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := kensa.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Kensa: %v\n", err)
		os.Exit(1)
	}
}
