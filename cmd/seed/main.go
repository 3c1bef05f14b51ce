// Package main provides a tool to seed a score store with plausible entries.
//
// Entries are appended directly, bypassing the anti-cheat pipeline, so the
// leaderboard and rank endpoints can be exercised against a realistic volume.
//
// Usage:
//
//	DATA_PATH=~/podropsquare go run ./cmd/seed
//	DATA_PATH=~/podropsquare go run ./cmd/seed --count 5000 --store sqlite
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/punkouter26/podropsquare-server/internal/domain"
	"github.com/punkouter26/podropsquare-server/internal/id"
	"github.com/punkouter26/podropsquare-server/internal/scoring"
	"github.com/punkouter26/podropsquare-server/internal/store"
	"github.com/punkouter26/podropsquare-server/internal/store/sqlite"
)

var (
	count   = flag.Int("count", 500, "Number of entries to create")
	players = flag.Int("players", 40, "Number of distinct players")
	backend = flag.String("store", "badger", "Score store backend (badger, sqlite)")
	spread  = flag.Duration("spread", 30*24*time.Hour, "How far back submissions are spread")
)

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/podropsquare")
	}

	s, err := openStore(dataPath, *backend)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))

	roster := make([]string, *players)
	for i := range roster {
		roster[i] = randomInitials(rng)
	}

	now := time.Now().UTC()
	created := 0
	for range *count {
		submittedAt := now.Add(-time.Duration(rng.Int64N(int64(*spread))))
		survival := scoring.RoundSurvival(survivalTime(rng))

		entryID, err := id.NewScoreID(submittedAt)
		if err != nil {
			log.Fatalf("Failed to generate id: %v", err)
		}

		e := &domain.ScoreEntry{
			ID:                  entryID,
			PlayerInitials:      roster[rng.IntN(len(roster))],
			SurvivalTimeSeconds: survival,
			CalculatedScore:     scoring.Default.Score(survival),
			SubmittedAt:         submittedAt,
			ClientClaimedAt:     submittedAt.Add(-time.Duration(rng.Int64N(int64(2 * time.Second)))),
		}
		if err := s.Append(ctx, e); err != nil {
			log.Printf("Failed to append %s: %v", e.ID, err)
			continue
		}
		created++
	}

	total, err := s.Count(ctx)
	if err != nil {
		log.Fatalf("Failed to count entries: %v", err)
	}

	fmt.Printf("Seeded %d entries for %d players (%d stored)\n", created, len(roster), total)
}

func openStore(dataPath, backend string) (store.ScoreStore, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, err
	}
	switch backend {
	case "sqlite":
		path := filepath.Join(dataPath, "scores.db")
		fmt.Printf("Opening sqlite store at: %s\n", path)
		return sqlite.Open(path, nil)
	case "badger":
		path := filepath.Join(dataPath, "db")
		fmt.Printf("Opening badger store at: %s\n", path)
		return store.Open(path, nil)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func randomInitials(rng *rand.Rand) string {
	b := make([]byte, 1+rng.IntN(3))
	for i := range b {
		b[i] = letters[rng.IntN(len(letters))]
	}
	return string(b)
}

// survivalTime is skewed toward short runs: most players drop out early.
func survivalTime(rng *rand.Rand) float64 {
	t := 0.5 + rng.ExpFloat64()*4
	return min(t, 20)
}
