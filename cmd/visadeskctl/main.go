package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/visadesk/visadesk/cmd/visadeskctl/cli"
	"github.com/visadesk/visadesk/internal/app"
)

func main() {
	if app.InTestMode() {
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(func() (*cli.OpsCLI, error) {
		cfg, err := app.LoadConfig()
		if err != nil {
			return nil, err
		}
		return cli.NewOpsCLI(cfg.RedisAddr, cfg.JWTSecret, cfg.JWTIssuer)
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
