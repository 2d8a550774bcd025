// Inspection tool: dumps locally cached progress rows for a user.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/soundleafapp/soundleaf-playback/internal/config"
	"github.com/soundleafapp/soundleaf-playback/internal/store"
)

func main() {
	userID := flag.String("user", "", "user id to dump rows for")
	limit := flag.Int("limit", 20, "maximum rows")
	dbPath := flag.String("db", "", "progress database path (default: XDG data dir)")
	flag.Parse()

	if *userID == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		*userID = cfg.UserID
	}
	if *userID == "" {
		log.Fatal("No user id: pass -user or set user_id in config.toml")
	}

	var (
		m   *store.Manager
		err error
	)
	if *dbPath != "" {
		m, err = store.OpenPath(*dbPath)
	} else {
		m, err = store.Open()
	}
	if err != nil {
		log.Fatalf("Failed to open progress store: %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snaps, err := m.Recent(ctx, *userID, *limit)
	if err != nil {
		log.Fatalf("Failed to read progress rows: %v", err)
	}
	if len(snaps) == 0 {
		fmt.Printf("No progress rows for user %s\n", *userID)
		return
	}

	fmt.Printf("Progress for user %s (%d rows):\n\n", *userID, len(snaps))
	for _, snap := range snaps {
		fmt.Printf("  %-24s chapter %2d at %-10s %5.1f%%  updated %s\n",
			snap.ItemID,
			snap.ChapterIndex,
			snap.Position.Round(time.Second),
			snap.Percent*100,
			humanize.Time(snap.UpdatedAt))
	}
}
