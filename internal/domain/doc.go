// Package domain holds the score server's core types: raw submissions, stored
// score entries, ranked leaderboard rows, cached snapshots and rate-limit windows.
package domain
