package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/bankguard/internal/adminctl"
	"github.com/dmitrijs2005/bankguard/internal/logging"
)

func main() {
	env := &adminctl.Env{Log: logging.NewJSONLogger(os.Stderr, slog.LevelInfo)}

	if err := adminctl.NewRootCommand(env).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
