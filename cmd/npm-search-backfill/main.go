// Command npm-search-backfill is a placeholder for a future full-index
// bootstrap tool (scanning the registry's complete package set rather
// than tailing its change feed). The watcher assumes an index already
// populated by some other means and only keeps it current from here on.
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "npm-search-backfill: not implemented — run `npm-search-watcher watch` for the change-feed watcher")
	os.Exit(1)
}
