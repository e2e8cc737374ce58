package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mcdev12/draftroom/go/internal/catalog"
	"github.com/mcdev12/draftroom/go/internal/draft/engine"
)

func main() {
	path := flag.String("catalog", "", "catalog YAML file (empty for the embedded default)")
	maxPlayers := flag.Int("players", 4, "largest room size to check")
	flag.Parse()

	// 1) Load the catalog the same way the server does
	var (
		cat *catalog.Catalog
		err error
	)
	if *path == "" {
		cat, err = catalog.Default()
	} else {
		cat, err = catalog.Load(*path)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load catalog: %v\n", err)
		os.Exit(1)
	}

	// 2) Report each pool's quota and whether every room size fits
	failed := false
	for _, pool := range cat.Pools() {
		fmt.Printf("%-16s %3d items, quota %d\n", pool.Key, len(pool.Items), pool.Quota)
		for n := 1; n <= *maxPlayers; n++ {
			q := engine.QuotaFor(pool, n)
			need := q * n
			status := "ok"
			if need > len(pool.Items) {
				status = "TOO SMALL"
				failed = true
			}
			fmt.Printf("  %d players: %d each, %d picks  %s\n", n, q, need, status)
		}
	}

	// 3) Print summary
	fmt.Printf(
		"Catalog check complete: %d pools, %d items, %d gambits\n",
		len(cat.Pools()), len(cat.Items()), len(cat.Gambits()),
	)
	if failed {
		os.Exit(1)
	}
}
