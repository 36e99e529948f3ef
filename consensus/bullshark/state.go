package bullshark

import (
	"errors"
	"fmt"

	"github.com/orbitbft/orbit-go/model/orbit"
)

// MissingAncestorError is returned when a block cannot be inserted into the
// DAG because an ancestor has not arrived yet. The caller is expected to
// resubmit the block once its causal history is complete.
type MissingAncestorError struct {
	Block    orbit.BlockRef
	Ancestor orbit.BlockRef
}

func (e MissingAncestorError) Error() string {
	return fmt.Sprintf("block %s is missing ancestor %s", e.Block, e.Ancestor)
}

// IsMissingAncestorError returns whether err is a MissingAncestorError.
func IsMissingAncestorError(err error) bool {
	var target MissingAncestorError
	return errors.As(err, &target)
}

// consensusState is the in-memory view the commit rule operates on: the
// uncommitted portion of the DAG plus the per-authority commit watermarks.
// It is owned and mutated by a single goroutine; determinism across nodes
// depends on blocks being applied in a linear order.
type consensusState struct {
	committee *orbit.Committee
	gcDepth   uint32

	// dag holds all retained blocks grouped by round then author. Genesis
	// blocks occupy round 0 from construction.
	dag map[orbit.Round]map[orbit.AuthorityIndex]*orbit.VerifiedBlock

	// lastCommitted tracks, per authority, the highest round of its blocks
	// included in any commit. Genesis blocks count as committed from the
	// start, so entries begin at round 0.
	lastCommitted []orbit.Round

	lastCommittedRound orbit.Round
	lastSequence       orbit.CommitSequenceNumber
	lastTimestampMs    uint64
}

func newConsensusState(committee *orbit.Committee, gcDepth uint32) *consensusState {
	dag := map[orbit.Round]map[orbit.AuthorityIndex]*orbit.VerifiedBlock{
		orbit.GenesisRound: make(map[orbit.AuthorityIndex]*orbit.VerifiedBlock),
	}
	for _, genesis := range orbit.GenesisBlocks(committee) {
		dag[orbit.GenesisRound][genesis.Author()] = genesis
	}
	return &consensusState{
		committee:     committee,
		gcDepth:       gcDepth,
		dag:           dag,
		lastCommitted: make([]orbit.Round, committee.Size()),
	}
}

// recoveredConsensusState restores the commit watermarks from the persisted
// commit state. The DAG itself is rebuilt by replaying retained blocks.
func recoveredConsensusState(committee *orbit.Committee, gcDepth uint32, persisted *orbit.CommitState) *consensusState {
	state := newConsensusState(committee, gcDepth)
	if persisted == nil {
		return state
	}
	if len(persisted.LastCommittedRounds) != committee.Size() {
		panic(fmt.Sprintf("persisted commit state has %d authorities, committee has %d",
			len(persisted.LastCommittedRounds), committee.Size()))
	}
	state.lastSequence = persisted.LastSequenceNumber
	state.lastCommittedRound = persisted.LastCommittedRound
	state.lastTimestampMs = persisted.TimestampMs
	copy(state.lastCommitted, persisted.LastCommittedRounds)
	return state
}

// tryInsert adds a verified block to the DAG. Every ancestor must either be
// present in the DAG or fall at or below the committed watermark of its
// authority; otherwise a MissingAncestorError is returned and the block is
// not inserted. A different block already occupying the same (round, author)
// slot is an equivocation, which verification rules out, so it panics.
func (s *consensusState) tryInsert(block *orbit.VerifiedBlock) error {
	if existing, ok := s.dag[block.Round()][block.Author()]; ok {
		if existing.Digest() != block.Digest() {
			panic(fmt.Sprintf("equivocation in DAG: %s conflicts with %s", block.Ref(), existing.Ref()))
		}
		return nil
	}

	gcRound := s.gcRound()
	for _, ancestor := range block.Ancestors() {
		if ancestor.Round <= s.lastCommitted[ancestor.Author] || ancestor.Round < gcRound {
			continue
		}
		if _, ok := s.dag[ancestor.Round][ancestor.Author]; !ok {
			return MissingAncestorError{Block: block.Ref(), Ancestor: ancestor}
		}
	}

	round := s.dag[block.Round()]
	if round == nil {
		round = make(map[orbit.AuthorityIndex]*orbit.VerifiedBlock)
		s.dag[block.Round()] = round
	}
	round[block.Author()] = block
	return nil
}

// contains reports whether the block at the ref's (round, author) slot is
// retained in the DAG.
func (s *consensusState) contains(ref orbit.BlockRef) bool {
	block, ok := s.dag[ref.Round][ref.Author]
	return ok && block.Digest() == ref.Digest
}

// gcRound is the lowest round retained in the DAG.
func (s *consensusState) gcRound() orbit.Round {
	if s.lastCommittedRound <= orbit.Round(s.gcDepth) {
		return orbit.GenesisRound
	}
	return s.lastCommittedRound - orbit.Round(s.gcDepth)
}

// prune drops DAG rounds below the GC round and raises the per-authority
// watermarks accordingly.
func (s *consensusState) prune() {
	gcRound := s.gcRound()
	for round := range s.dag {
		if round != orbit.GenesisRound && round < gcRound {
			delete(s.dag, round)
		}
	}
	for author := range s.lastCommitted {
		if gcRound > s.lastCommitted[author] {
			s.lastCommitted[author] = gcRound
		}
	}
}

// commitState snapshots the watermarks for persistence.
func (s *consensusState) commitState() *orbit.CommitState {
	rounds := make([]orbit.Round, len(s.lastCommitted))
	copy(rounds, s.lastCommitted)
	return &orbit.CommitState{
		LastSequenceNumber:  s.lastSequence,
		LastCommittedRound:  s.lastCommittedRound,
		LastCommittedRounds: rounds,
		TimestampMs:         s.lastTimestampMs,
	}
}
