// Admin CLI over the runtime index DB: recent block mutations and
// snapshot metadata.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"aetharia.world/internal/persistence/indexdb"
)

func main() {
	var (
		dbPath    = flag.String("db", "./data/index.db", "index db path")
		mutations = flag.Int("mutations", 0, "print the N most recent block mutations")
		snapshots = flag.Bool("snapshots", false, "print snapshot metadata")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[admin] ", 0)

	idx, err := indexdb.Open(*dbPath)
	if err != nil {
		logger.Fatalf("open %s: %v", *dbPath, err)
	}
	defer idx.Close()

	if *mutations > 0 {
		rows, err := idx.RecentMutations(*mutations)
		if err != nil {
			logger.Fatalf("query mutations: %v", err)
		}
		for _, r := range rows {
			fmt.Printf("%s  session=%s  (%d,%d) tile=%d\n",
				time.UnixMilli(r.AtUnix).UTC().Format(time.RFC3339), r.Session, r.X, r.Y, r.Tile)
		}
	}

	if *snapshots {
		rows, err := idx.Snapshots()
		if err != nil {
			logger.Fatalf("query snapshots: %v", err)
		}
		for _, r := range rows {
			fmt.Printf("%s  %s  overrides=%d players=%d\n",
				time.UnixMilli(r.AtUnix).UTC().Format(time.RFC3339), r.Path, r.Overrides, r.Players)
		}
	}

	if *mutations == 0 && !*snapshots {
		flag.Usage()
	}
}
