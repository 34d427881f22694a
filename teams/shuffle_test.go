package teams

import (
	"math"
	"reflect"
	"sort"
	"testing"
)

func players(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('A' + i))
	}
	return out
}

func TestShufflePartitionsEveryPlayer(t *testing.T) {
	for n := 2; n <= 12; n++ {
		for k := 2; k <= n && k <= 5; k++ {
			in := players(n)
			result := Shuffle(in, k)
			if len(result) != k {
				t.Fatalf("n=%d k=%d: expected %d teams, got %d", n, k, k, len(result))
			}

			seen := map[string]int{}
			minSize, maxSize := n, 0
			for _, team := range result {
				if team == nil {
					t.Fatalf("n=%d k=%d: nil team", n, k)
				}
				minSize = min(minSize, len(team))
				maxSize = max(maxSize, len(team))
				for _, p := range team {
					seen[p]++
				}
			}
			if maxSize-minSize > 1 {
				t.Fatalf("n=%d k=%d: unbalanced sizes %d..%d", n, k, minSize, maxSize)
			}
			if len(seen) != n {
				t.Fatalf("n=%d k=%d: expected %d distinct players, got %d", n, k, n, len(seen))
			}
			for p, c := range seen {
				if c != 1 {
					t.Fatalf("n=%d k=%d: player %s placed %d times", n, k, p, c)
				}
			}
		}
	}
}

func TestShuffleSevenIntoThree(t *testing.T) {
	result := Shuffle(players(7), 3)
	var sizes []int
	for _, team := range result {
		sizes = append(sizes, len(team))
	}
	sort.Ints(sizes)
	if !reflect.DeepEqual(sizes, []int{2, 2, 3}) {
		t.Fatalf("expected sizes {3,2,2}, got %v", sizes)
	}
}

func TestShuffleDoesNotModifyInput(t *testing.T) {
	in := players(6)
	want := players(6)
	for i := 0; i < 20; i++ {
		Shuffle(in, 3)
	}
	if !reflect.DeepEqual(in, want) {
		t.Fatalf("expected input untouched, got %v", in)
	}
}

func TestDealRoundRobin(t *testing.T) {
	got := Deal([]string{"a", "b", "c", "d", "e"}, 2)
	want := [][]string{{"a", "c", "e"}, {"b", "d"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

// Each player should land in each team with probability 1/k.
func TestShuffleIsUniform(t *testing.T) {
	const (
		trials = 30000
		k      = 3
	)
	in := players(7)
	counts := make(map[string][]int, len(in))
	for _, p := range in {
		counts[p] = make([]int, k)
	}
	for i := 0; i < trials; i++ {
		for team, members := range Shuffle(in, k) {
			for _, p := range members {
				counts[p][team]++
			}
		}
	}

	// team 0 holds 3 of 7 seats, teams 1 and 2 hold 2 each.
	expected := []float64{3.0 / 7, 2.0 / 7, 2.0 / 7}
	for p, perTeam := range counts {
		for team, c := range perTeam {
			want := expected[team] * trials
			sigma := math.Sqrt(trials * expected[team] * (1 - expected[team]))
			if math.Abs(float64(c)-want) > 5*sigma {
				t.Fatalf("player %s team %d: got %d placements, expected about %.0f", p, team, c, want)
			}
		}
	}

	// The first candidate must not be favoured for the first seat.
	firstSeat := 0
	for i := 0; i < trials; i++ {
		if Shuffle(in, k)[0][0] == in[0] {
			firstSeat++
		}
	}
	want := float64(trials) / float64(len(in))
	sigma := math.Sqrt(trials * (1.0 / 7) * (6.0 / 7))
	if math.Abs(float64(firstSeat)-want) > 5*sigma {
		t.Fatalf("first seat bias: got %d, expected about %.0f", firstSeat, want)
	}
}

func TestCountOptions(t *testing.T) {
	cases := map[int][]int{
		0: nil,
		1: nil,
		2: {2},
		3: {2, 3},
		4: {2, 3, 4},
		9: {2, 3, 4},
	}
	for pool, want := range cases {
		if got := CountOptions(pool); !reflect.DeepEqual(got, want) {
			t.Fatalf("pool %d: expected %v, got %v", pool, want, got)
		}
	}
}

func TestValidCount(t *testing.T) {
	if ValidCount(1, 5) || ValidCount(6, 5) || !ValidCount(5, 5) || !ValidCount(2, 2) {
		t.Fatal("unexpected ValidCount result")
	}
}
