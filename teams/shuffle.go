// Package teams splits players into balanced random teams.
package teams

import "math/rand"

// MinTeams is the smallest number of teams a shuffle can produce.
const MinTeams = 2

var countOptions = []int{2, 3, 4}

// Shuffle returns a uniformly random partition of candidates into teamCount
// teams whose sizes differ by at most one. The caller guarantees
// 2 <= teamCount <= len(candidates). candidates is not modified.
func Shuffle(candidates []string, teamCount int) [][]string {
	order := make([]string, len(candidates))
	copy(order, candidates)
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return Deal(order, teamCount)
}

// Deal hands out players round-robin: order[i] joins team i mod teamCount.
func Deal(order []string, teamCount int) [][]string {
	if teamCount <= 0 {
		return nil
	}
	teams := make([][]string, teamCount)
	for i := range teams {
		teams[i] = make([]string, 0, len(order)/teamCount+1)
	}
	for i, player := range order {
		teams[i%teamCount] = append(teams[i%teamCount], player)
	}
	return teams
}

// ValidCount reports whether players can be split into n teams.
func ValidCount(n, players int) bool {
	return n >= MinTeams && n <= players
}

// CountOptions lists the team counts offered for a pool of players.
func CountOptions(players int) []int {
	var out []int
	for _, n := range countOptions {
		if ValidCount(n, players) {
			out = append(out, n)
		}
	}
	return out
}
