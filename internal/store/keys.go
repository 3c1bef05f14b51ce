package store

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/punkouter26/podropsquare-server/internal/domain"
	"github.com/punkouter26/podropsquare-server/internal/id"
)

// Key layout:
//
//	score:<id>                      JSON entry; ids sort newest first
//	rank:<rankKey>                  id; the global leaderboard partition
//	player:<initials>:<rankKey>     id; one partition per player
//
// rankKey is <inverted score, 16 hex>:<submittedAt nanos, 20 digits>:<id>, so
// byte order of rank keys is the leaderboard's total order.
const (
	scorePrefix  = "score:"
	rankPrefix   = "rank:"
	playerPrefix = "player:"
)

// keyPool provides reusable byte slices for building database keys.
var keyPool = sync.Pool{
	New: func() any {
		// player:XXX: + 16 + 1 + 20 + 1 + 29 byte id fits comfortably.
		return make([]byte, 0, 128)
	},
}

// getKeyBuf returns an empty pooled buffer. Callers MUST call releaseKey when
// done with any key built on it.
func getKeyBuf() []byte {
	buf, _ := keyPool.Get().([]byte)
	return buf[:0]
}

// releaseKey returns a key buffer to the pool. The slice must not be used
// afterwards.
func releaseKey(key []byte) {
	if cap(key) <= 512 {
		keyPool.Put(key[:0])
	}
}

// appendRankKey appends e's rank key to buf.
func appendRankKey(buf []byte, e *domain.ScoreEntry) []byte {
	inv := uint64(math.MaxInt64 - e.CalculatedScore)
	buf = appendPadded(buf, strconv.FormatUint(inv, 16), 16)
	buf = append(buf, ':')
	buf = appendPadded(buf, strconv.FormatInt(e.SubmittedAt.UnixNano(), 10), 20)
	buf = append(buf, ':')
	return append(buf, e.ID...)
}

func appendPadded(buf []byte, s string, width int) []byte {
	for i := len(s); i < width; i++ {
		buf = append(buf, '0')
	}
	return append(buf, s...)
}

func scoreKey(entryID string) []byte {
	return append(append(getKeyBuf(), scorePrefix...), entryID...)
}

func rankKey(e *domain.ScoreEntry) []byte {
	return appendRankKey(append(getKeyBuf(), rankPrefix...), e)
}

func playerPartition(initials string) []byte {
	buf := append(getKeyBuf(), playerPrefix...)
	buf = append(buf, initials...)
	return append(buf, ':')
}

func playerKey(e *domain.ScoreEntry) []byte {
	return appendRankKey(playerPartition(e.PlayerInitials), e)
}

// purgeSeekKey is the first row key that can belong to an entry submitted at
// or before cutoff. Row keys sort newest first, so everything older follows.
func purgeSeekKey(cutoff time.Time) []byte {
	return append(append(getKeyBuf(), scorePrefix...), id.InvertedTime(cutoff)...)
}
