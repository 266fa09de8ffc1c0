// Command lime executes .mgx prompt files and manages the prompt integrity
// manifest and lock.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes the message and any attached remediation hints.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if hints := errors.FlattenHints(err); hints != "" {
		fmt.Fprintf(w, "Hint: %s\n", hints)
	}
}
