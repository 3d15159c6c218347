package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/pipeline/redact"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	state := &runState{}
	rc := newRootCommand(state, os.Stdout, os.Stderr)
	rc.SetArgs(args)
	err := rc.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	code := exitCode(state, err)
	prefix := "error"
	if code == 2 {
		prefix = "config error"
	}
	_, _ = fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, redact.Secrets(err.Error()))
	return code
}
