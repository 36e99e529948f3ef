// Package bullshark implements the leader-based commit rule over the block
// DAG: electing a leader candidate every other round, committing it once its
// voting round carries quorum support, retrofitting skipped leaders through
// reachability, and linearizing each committed leader's uncommitted causal
// history into one irrevocable ordered batch.
package bullshark

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/orbitbft/orbit-go/model/orbit"
	"github.com/orbitbft/orbit-go/module/metrics"
	"github.com/orbitbft/orbit-go/storage"
)

// Bullshark applies verified blocks to the DAG and emits committed sub-DAGs.
// All methods must be called from a single goroutine: the commit rule is
// logically single-threaded per epoch, since every node must apply the same
// mutations in the same order to stay in agreement.
type Bullshark struct {
	log       zerolog.Logger
	committee *orbit.Committee
	schedule  *LeaderSchedule
	blocks    storage.Blocks
	commits   storage.Commits
	metrics   *metrics.ConsensusCollector
	state     *consensusState
}

// NewBullshark restores the commit rule from the persisted commit state
// (pass nil on a fresh node).
func NewBullshark(
	log zerolog.Logger,
	committee *orbit.Committee,
	gcDepth uint32,
	blocks storage.Blocks,
	commits storage.Commits,
	collector *metrics.ConsensusCollector,
	persisted *orbit.CommitState,
) *Bullshark {
	return &Bullshark{
		log:       log.With().Str("component", "bullshark").Logger(),
		committee: committee,
		schedule:  NewLeaderSchedule(committee),
		blocks:    blocks,
		commits:   commits,
		metrics:   collector,
		state:     recoveredConsensusState(committee, gcDepth, persisted),
	}
}

// LastSequenceNumber returns the sequence of the most recent commit.
func (b *Bullshark) LastSequenceNumber() orbit.CommitSequenceNumber {
	return b.state.lastSequence
}

// LastCommittedRound returns the round of the most recently committed leader.
func (b *Bullshark) LastCommittedRound() orbit.Round {
	return b.state.lastCommittedRound
}

// ProcessBlock inserts a verified block into the DAG and runs the commit
// rule. It returns the commits the block triggered, if any, in sequence
// order. Commits are persisted before they are returned; a commit once
// returned is never revoked.
//
// A block whose ancestors are not all locally known is rejected with
// MissingAncestorError and must be resubmitted later.
func (b *Bullshark) ProcessBlock(block *orbit.VerifiedBlock) ([]*orbit.CommittedSubDag, error) {
	err := b.state.tryInsert(block)
	if err != nil {
		return nil, err
	}
	err = b.blocks.Insert(block)
	if err != nil {
		return nil, fmt.Errorf("could not persist block %s: %w", block.Ref(), err)
	}

	// The block votes for the leader of the round below it. Only even rounds
	// elect leaders.
	leaderRound := block.Round() - 1
	if !b.schedule.IsLeaderRound(leaderRound) {
		return nil, nil
	}
	if leaderRound <= b.state.lastCommittedRound {
		return nil, nil
	}

	leader, ok := b.state.dag[leaderRound][b.schedule.Leader(leaderRound)]
	if !ok {
		return nil, nil
	}

	// Sum the stake of voting-round blocks that reference the leader.
	var support orbit.Stake
	for _, voter := range b.state.dag[leaderRound+1] {
		for _, ancestor := range voter.Ancestors() {
			if ancestor == leader.Ref() {
				support += b.committee.Stake(voter.Author())
				break
			}
		}
	}
	if !b.committee.ReachedQuorum(support) {
		return nil, nil
	}

	// The leader is committed. Walk back over the uncommitted leader rounds
	// to see which earlier leaders get retrofitted into the commit sequence,
	// then linearize each committed leader's sub-DAG in order.
	var commits []*orbit.CommittedSubDag
	for _, committedLeader := range b.orderLeaders(leader) {
		subDag, err := b.commitLeader(committedLeader)
		if err != nil {
			return nil, err
		}
		commits = append(commits, subDag)
	}

	b.state.prune()
	err = b.blocks.PruneBelowRound(b.state.gcRound())
	if err != nil {
		return nil, fmt.Errorf("could not prune block store: %w", err)
	}
	return commits, nil
}

// orderLeaders walks the uncommitted even rounds from the newly committed
// leader down to the last commit, keeping each round's leader iff there is a
// path to it from the last kept leader. Skipped rounds are skipped forever:
// every node observes the same reachability and prunes the same leaders.
// The result is in ascending round order, ending with the given leader.
func (b *Bullshark) orderLeaders(leader *orbit.VerifiedBlock) []*orbit.VerifiedBlock {
	ordered := []*orbit.VerifiedBlock{leader}
	last := leader
	for round := leader.Round() - 2; round > b.state.lastCommittedRound; round -= 2 {
		candidate, ok := b.state.dag[round][b.schedule.Leader(round)]
		if !ok {
			b.metrics.LeaderSkipped()
			b.log.Debug().Uint32("round", uint32(round)).Msg("no leader block, skipping round")
			continue
		}
		if !b.linked(last, candidate) {
			b.metrics.LeaderSkipped()
			b.log.Debug().
				Uint32("round", uint32(round)).
				Str("leader", candidate.Ref().String()).
				Msg("leader not supported by later leader, skipping round")
			continue
		}
		ordered = append(ordered, candidate)
		last = candidate
	}

	// Reverse into ascending round order.
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	return ordered
}

// linked reports whether there is an ancestor path from the later block down
// to the earlier one through the retained DAG.
func (b *Bullshark) linked(later, earlier *orbit.VerifiedBlock) bool {
	target := earlier.Ref()
	seen := make(map[orbit.BlockRef]struct{})
	stack := []*orbit.VerifiedBlock{later}
	for len(stack) > 0 {
		block := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, ancestor := range block.Ancestors() {
			if ancestor == target {
				return true
			}
			// Nothing at or below the target's round can reach it.
			if ancestor.Round <= earlier.Round() {
				continue
			}
			if _, ok := seen[ancestor]; ok {
				continue
			}
			seen[ancestor] = struct{}{}
			ancestorBlock, ok := b.state.dag[ancestor.Round][ancestor.Author]
			if ok && ancestorBlock.Digest() == ancestor.Digest {
				stack = append(stack, ancestorBlock)
			}
		}
	}
	return false
}

// commitLeader linearizes the leader's uncommitted causal history into one
// commit batch, advances the watermarks, and persists the commit before
// returning it.
func (b *Bullshark) commitLeader(leader *orbit.VerifiedBlock) (*orbit.CommittedSubDag, error) {
	blocks := b.linearize(leader)

	b.state.lastSequence++
	b.state.lastCommittedRound = leader.Round()
	if leader.TimestampMs() > b.state.lastTimestampMs {
		b.state.lastTimestampMs = leader.TimestampMs()
	}

	subDag := &orbit.CommittedSubDag{
		Leader:         leader,
		Blocks:         blocks,
		SequenceNumber: b.state.lastSequence,
		TimestampMs:    b.state.lastTimestampMs,
	}

	refs := make([]orbit.BlockRef, 0, len(blocks))
	for _, block := range blocks {
		refs = append(refs, block.Ref())
	}
	record := &orbit.CommitRecord{
		SequenceNumber: subDag.SequenceNumber,
		LeaderRef:      leader.Ref(),
		BlockRefs:      refs,
		TimestampMs:    subDag.TimestampMs,
	}
	err := b.commits.Insert(record, b.state.commitState())
	if err != nil {
		return nil, fmt.Errorf("could not persist commit %d: %w", subDag.SequenceNumber, err)
	}

	b.metrics.SubDagCommitted(uint64(leader.Round()), uint64(subDag.SequenceNumber), len(blocks))
	b.log.Info().
		Uint64("sequence", uint64(subDag.SequenceNumber)).
		Str("leader", leader.Ref().String()).
		Int("blocks", len(blocks)).
		Msg("committed sub-DAG")
	return subDag, nil
}

// linearize collects the leader's causal closure, excluding blocks already
// part of an earlier commit, and flattens it in ascending
// (round, author, digest) order. The per-authority watermarks advance so no
// block is ever emitted twice.
func (b *Bullshark) linearize(leader *orbit.VerifiedBlock) []*orbit.VerifiedBlock {
	var committed []*orbit.VerifiedBlock
	seen := map[orbit.BlockRef]struct{}{leader.Ref(): {}}
	frontier := []*orbit.VerifiedBlock{leader}
	for len(frontier) > 0 {
		block := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		committed = append(committed, block)

		for _, ancestor := range block.Ancestors() {
			if _, ok := seen[ancestor]; ok {
				continue
			}
			seen[ancestor] = struct{}{}
			// Blocks at or below the authority's committed watermark are
			// part of an earlier commit (genesis counts as committed).
			if ancestor.Round <= b.state.lastCommitted[ancestor.Author] {
				continue
			}
			ancestorBlock, ok := b.state.dag[ancestor.Round][ancestor.Author]
			if !ok || ancestorBlock.Digest() != ancestor.Digest {
				// Causal closure holds for every inserted block, so an
				// unresolvable uncommitted ancestor cannot happen.
				panic(fmt.Sprintf("committed block %s has unresolved ancestor %s", block.Ref(), ancestor))
			}
			frontier = append(frontier, ancestorBlock)
		}
	}

	sort.Slice(committed, func(i, j int) bool {
		return committed[i].Ref().Compare(committed[j].Ref()) < 0
	})

	for _, block := range committed {
		if block.Round() > b.state.lastCommitted[block.Author()] {
			b.state.lastCommitted[block.Author()] = block.Round()
		}
	}
	return committed
}
