package cd

import (
	"fmt"
	"math/rand"
)

// PlayMode selects the order tracks are played in.
type PlayMode int

const (
	Sequential PlayMode = iota
	Random
)

func (m PlayMode) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Random:
		return "random"
	default:
		return fmt.Sprintf("PlayMode(%d)", int(m))
	}
}

// ParsePlayMode converts "sequential" or "random" into a PlayMode.
func ParsePlayMode(s string) (PlayMode, error) {
	switch s {
	case "sequential", "":
		return Sequential, nil
	case "random", "shuffle":
		return Random, nil
	default:
		return Sequential, fmt.Errorf("unknown play mode %q", s)
	}
}

// PlayList is an ordering of track indices. It is rebuilt wholesale when
// the play mode changes and never edited in place.
type PlayList struct {
	order []int
}

// SequentialList returns the identity ordering of n tracks.
func SequentialList(n int) PlayList {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return PlayList{order: order}
}

// ShuffledList returns a random permutation of n tracks.
func ShuffledList(n int, rng *rand.Rand) PlayList {
	pl := SequentialList(n)
	rng.Shuffle(n, func(i, j int) {
		pl.order[i], pl.order[j] = pl.order[j], pl.order[i]
	})
	return pl
}

// NewPlayList builds the list for mode.
func NewPlayList(mode PlayMode, n int, rng *rand.Rand) PlayList {
	if mode == Random {
		return ShuffledList(n, rng)
	}
	return SequentialList(n)
}

// Len returns the number of entries.
func (pl PlayList) Len() int {
	return len(pl.order)
}

// At returns the track index at position pos.
func (pl PlayList) At(pos int) int {
	return pl.order[pos]
}

// IndexOf returns the position of track in the list, or -1.
func (pl PlayList) IndexOf(track int) int {
	for pos, t := range pl.order {
		if t == track {
			return pos
		}
	}
	return -1
}

// Order returns a copy of the track indices in play order.
func (pl PlayList) Order() []int {
	order := make([]int, len(pl.order))
	copy(order, pl.order)
	return order
}
