package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samandr77/microservices/ticketflow/internal/entity"
	"github.com/samandr77/microservices/ticketflow/pkg/config"
	"github.com/samandr77/microservices/ticketflow/pkg/logger"
	"github.com/samandr77/microservices/ticketflow/pkg/sqlite"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer cancel()

	cfg, err := config.New(".env")
	panicOnErr("load config", err)

	_, err = logger.New(cfg.Logger.Level, os.Stderr)
	panicOnErr("create logger", err)

	db, err := sqlite.Connect(ctx, cfg.SessionDBPath)
	panicOnErr("connect to sqlite", err)

	defer db.Close()

	a := newApp(cfg, db, os.Stdout)
	defer a.Close()

	err = a.Run(ctx, os.Args[1:])
	if err == nil {
		return 0
	}

	var uErr *usageError
	if errors.As(err, &uErr) {
		fmt.Fprintln(os.Stderr, uErr.Error())
		fmt.Fprint(os.Stderr, usage)

		return 2
	}

	slog.DebugContext(ctx, "command failed", "error", err)
	fmt.Fprintln(os.Stderr, entity.UserMessage(err))

	return 1
}

func panicOnErr(msg string, err error) {
	if err != nil {
		log.Panicf("%s: %s", msg, err)
	}
}
