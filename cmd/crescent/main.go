// Command crescent tracks a family's season locally and syncs it with the
// backend of record.
package main

import (
	"context"
	"os"

	_ "time/tzdata"

	"github.com/roach88/crescent/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
