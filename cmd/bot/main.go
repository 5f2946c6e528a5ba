package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SoloWolfStudios/BoostBotTracker/internal/app"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bot, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := bot.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	// Ends on SIGINT/SIGTERM or on a fatal supervisor error.
	<-bot.Done()

	reason := app.StopSignal
	fatal := bot.Err() != nil && ctx.Err() == nil
	if fatal {
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = bot.Stop(stopCtx, reason)

	if fatal {
		fmt.Println("fatal:", bot.Err())
		os.Exit(1)
	}
}
