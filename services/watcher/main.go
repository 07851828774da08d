package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/02loveslollipop/gymfence/services/api/db"
	"github.com/02loveslollipop/gymfence/services/watcher/internal/config"
	"github.com/02loveslollipop/gymfence/services/watcher/internal/diff"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("watcher failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	w := &watcher{cfg: cfg, q: store}
	log.Printf("watching %s..%s every %s (driver=%s, dry-run=%v)",
		cfg.Region.SW, cfg.Region.NE, cfg.Interval, store.Dialect(), cfg.DryRun)

	if _, err := w.poll(ctx); err != nil {
		return err
	}
	if cfg.DryRun {
		return nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("shutting down after %d polls", w.polls)
			return nil
		case <-ticker.C:
			if _, err := w.poll(ctx); err != nil {
				// storage hiccups should not stop the loop
				log.Printf("poll failed: %v", err)
			}
		}
	}
}

type watcher struct {
	cfg   config.Config
	q     db.Querier
	known map[string]db.GymWithDetail
	since *time.Time
	polls int
}

// poll fetches the gyms scanned since the previous successful poll, logs
// what changed and returns it. The first poll only records a baseline.
func (w *watcher) poll(ctx context.Context) ([]diff.Change, error) {
	started := time.Now().UTC().Truncate(time.Second)

	ctx, cancel := context.WithTimeout(ctx, w.cfg.QueryTimeout)
	defer cancel()

	region := w.cfg.Region
	current, err := db.GymsInRectangle(ctx, w.q, db.RectangleFilter{
		Current:  &region,
		Previous: w.cfg.PreviousRegion,
		Since:    w.since,
	})
	if err != nil {
		return nil, err
	}

	first := w.known == nil
	now := time.Now()
	changes := diff.Changes(w.known, current, now)
	w.known = diff.Apply(w.known, current, now)
	w.since = &started
	w.polls++

	if first {
		log.Printf("baseline: %d gyms in region", len(current))
		return nil, nil
	}
	if len(changes) == 0 {
		log.Printf("no changes (%d gyms rescanned)", len(current))
		return nil, nil
	}
	for _, c := range changes {
		log.Print(c)
	}
	log.Printf("%d changes across %d rescanned gyms", len(changes), len(current))
	return changes, nil
}
