package bullshark

import (
	"fmt"

	"github.com/orbitbft/orbit-go/model/orbit"
)

// LeaderSchedule deterministically elects one authority as leader candidate
// for each leader round. Leaders are elected on the even rounds only; the
// odd round above each leader round is its voting round. The schedule is a
// pure function of committee composition and round number, so every node
// elects the same leaders.
type LeaderSchedule struct {
	committee *orbit.Committee
}

func NewLeaderSchedule(committee *orbit.Committee) *LeaderSchedule {
	return &LeaderSchedule{committee: committee}
}

// IsLeaderRound returns whether leaders are elected for the given round.
func (s *LeaderSchedule) IsLeaderRound(round orbit.Round) bool {
	return round >= 2 && round%2 == 0
}

// Leader returns the leader candidate of the given leader round, rotating
// round-robin over the committee.
func (s *LeaderSchedule) Leader(round orbit.Round) orbit.AuthorityIndex {
	if !s.IsLeaderRound(round) {
		panic(fmt.Sprintf("no leader is elected for round %d", round))
	}
	return orbit.AuthorityIndex((uint64(round)/2 - 1) % uint64(s.committee.Size()))
}
