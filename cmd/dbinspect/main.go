// Package main prints a read-only summary of a Badger score store: key counts
// per partition, the head of the global leaderboard, and the busiest players.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/punkouter26/podropsquare-server/internal/domain"
)

const topRows = 10

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/podropsquare/db")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Score Store Inspection ===")
	fmt.Println()

	var (
		scores, ranks, playerRows int
		perPlayer                 = map[string]int{}
		head                      []*domain.ScoreEntry
	)

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			switch {
			case bytes.HasPrefix(key, []byte("score:")):
				scores++
			case bytes.HasPrefix(key, []byte("rank:")):
				ranks++
				if len(head) < topRows {
					e, err := loadEntry(txn, it.Item())
					if err != nil {
						return err
					}
					head = append(head, e)
				}
			case bytes.HasPrefix(key, []byte("player:")):
				playerRows++
				rest := key[len("player:"):]
				if i := bytes.IndexByte(rest, ':'); i > 0 {
					perPlayer[string(rest[:i])]++
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to scan database: %v", err)
	}

	fmt.Printf("Entries:         %d\n", scores)
	fmt.Printf("Rank rows:       %d\n", ranks)
	fmt.Printf("Player rows:     %d\n", playerRows)
	fmt.Printf("Distinct players: %d\n", len(perPlayer))
	if scores != ranks || scores != playerRows {
		fmt.Println("WARNING: partition counts disagree; indexes may be inconsistent")
	}

	fmt.Println()
	fmt.Println("=== Leaderboard Head ===")
	for i, e := range head {
		fmt.Printf("  %2d. %-3s %6d  (%.2fs, %s)\n",
			i+1, e.PlayerInitials, e.CalculatedScore, e.SurvivalTimeSeconds,
			e.SubmittedAt.Format("2006-01-02 15:04:05"))
	}

	type playerCount struct {
		initials string
		n        int
	}
	busiest := make([]playerCount, 0, len(perPlayer))
	for p, n := range perPlayer {
		busiest = append(busiest, playerCount{p, n})
	}
	sort.Slice(busiest, func(i, j int) bool {
		if busiest[i].n != busiest[j].n {
			return busiest[i].n > busiest[j].n
		}
		return busiest[i].initials < busiest[j].initials
	})

	fmt.Println()
	fmt.Println("=== Most Active Players ===")
	for _, p := range busiest[:min(topRows, len(busiest))] {
		fmt.Printf("  %-3s %d entries\n", p.initials, p.n)
	}
}

// loadEntry follows a rank row to its score row.
func loadEntry(txn *badger.Txn, rankItem *badger.Item) (*domain.ScoreEntry, error) {
	entryID, err := rankItem.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	item, err := txn.Get(append([]byte("score:"), entryID...))
	if err != nil {
		return nil, fmt.Errorf("rank row %q: %w", rankItem.Key(), err)
	}
	var e domain.ScoreEntry
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	})
	return &e, err
}
