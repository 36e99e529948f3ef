package orbit

// CommitSequenceNumber is the position of a commit in the total order
// established by the commit rule. It increases by exactly 1 per commit.
type CommitSequenceNumber uint64

// CommittedSubDag is one ordered commit batch: a committed leader block and
// the flattened closure of its not-previously-committed causal history.
// Blocks appear exactly once across all commits, in ascending
// (round, author, digest) order within each batch. A commit is irrevocable:
// once emitted it is never removed or reordered.
type CommittedSubDag struct {
	// Leader is the committed leader vertex that anchors this batch.
	Leader *VerifiedBlock
	// Blocks is the ordered, deduplicated sub-DAG, leader included.
	Blocks []*VerifiedBlock
	// SequenceNumber is the commit's position in the total order.
	SequenceNumber CommitSequenceNumber
	// TimestampMs is the commit timestamp. It never regresses across
	// successive commits even if leader timestamps do.
	TimestampMs uint64
}

// LeaderRound returns the round of the committed leader.
func (c *CommittedSubDag) LeaderRound() Round {
	return c.Leader.Round()
}

// EpochTransition returns the end-of-epoch descriptor if any committed block
// of this batch carries one, otherwise nil.
func (c *CommittedSubDag) EpochTransition() *EpochTransition {
	for _, block := range c.Blocks {
		if block.Block.EndOfEpoch != nil {
			return block.Block.EndOfEpoch
		}
	}
	return nil
}

// CommitRecord is the persisted footprint of one commit, sufficient to
// restore the commit rule's progress after a restart.
type CommitRecord struct {
	SequenceNumber CommitSequenceNumber
	LeaderRef      BlockRef
	BlockRefs      []BlockRef
	TimestampMs    uint64
}

// CommitState is the persisted high-water state of the commit rule: the last
// committed round overall and per authority. It is written atomically with
// every commit record.
type CommitState struct {
	LastSequenceNumber CommitSequenceNumber
	LastCommittedRound Round
	// LastCommittedRounds maps each authority (by index) to the highest round
	// of its blocks that have been committed.
	LastCommittedRounds []Round
	TimestampMs         uint64
}
