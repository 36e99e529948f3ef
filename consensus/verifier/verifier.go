// Package verifier gates entry of signed blocks into the DAG. Verification
// is split into a stateless phase (Verify, runs as soon as bytes arrive)
// and a DAG-dependent phase (CheckAncestors, runs once the causal history
// is locally available).
package verifier

import (
	"github.com/orbitbft/orbit-go/config"
	"github.com/orbitbft/orbit-go/model/orbit"
	"github.com/orbitbft/orbit-go/module"
)

// BlockVerifier checks the validity of a block before it may enter the DAG.
// Blocks that fail verification at one honest authority fail at all of
// them, so an invalid block, or a block with an invalid ancestor, is never
// accepted into the DAG.
type BlockVerifier interface {
	// Verify checks the block's structure, signature, ancestor refs and
	// transaction payload. It needs no DAG access and can run concurrently
	// for many blocks. All returned errors are benign rejections from the
	// taxonomy in model/orbit.
	Verify(signed *orbit.SignedBlock) error

	// CheckAncestors checks the block against the content of its resolved
	// ancestors, given in the same order as the block's ancestor refs. It
	// may only be called after every ancestor passed verification and is
	// stored locally.
	CheckAncestors(block *orbit.VerifiedBlock, ancestors []*orbit.VerifiedBlock) error
}

// SignedBlockVerifier implements the full validity predicate for one epoch's
// committee.
type SignedBlockVerifier struct {
	committee  *orbit.Committee
	limits     config.ProtocolLimits
	genesis    map[orbit.BlockRef]struct{}
	txVerifier module.TransactionVerifier
}

var _ BlockVerifier = (*SignedBlockVerifier)(nil)

func NewSignedBlockVerifier(
	committee *orbit.Committee,
	limits config.ProtocolLimits,
	txVerifier module.TransactionVerifier,
) *SignedBlockVerifier {
	genesis := make(map[orbit.BlockRef]struct{})
	for _, ref := range orbit.GenesisRefs(committee) {
		genesis[ref] = struct{}{}
	}
	return &SignedBlockVerifier{
		committee:  committee,
		limits:     limits,
		genesis:    genesis,
		txVerifier: txVerifier,
	}
}

// Verify checks, in order, short-circuiting on the first failure:
// epoch, non-genesis round, author index, signature, ancestor count and
// per-ancestor shape, parent stake quorum, transaction limits, and finally
// the delegated semantic transaction validity.
func (v *SignedBlockVerifier) Verify(signed *orbit.SignedBlock) error {
	block := &signed.Block
	committee := v.committee

	// The block must belong to the current epoch and carry a valid authority
	// index before its signature can be checked.
	if block.Epoch != committee.Epoch() {
		return orbit.WrongEpochError{Expected: committee.Epoch(), Actual: block.Epoch}
	}
	if block.Round == orbit.GenesisRound {
		return orbit.ErrUnexpectedGenesisBlock
	}
	if !committee.IsValidIndex(block.Author) {
		return orbit.InvalidAuthorityIndexError{Index: block.Author, Max: orbit.AuthorityIndex(committee.Size() - 1)}
	}

	err := signed.VerifySignature(committee)
	if err != nil {
		return err
	}

	// The ancestor refs must be consistent with the block's round, and the
	// parents (previous-round ancestors) must jointly reach quorum.
	if len(block.Ancestors) > committee.Size() {
		return orbit.TooManyAncestorsError{Count: len(block.Ancestors), Max: committee.Size()}
	}
	if len(block.Ancestors) == 0 {
		return orbit.InsufficientParentStakesError{ParentStakes: 0, Quorum: committee.QuorumThreshold()}
	}
	seenAncestors := make([]bool, committee.Size())
	var parentStakes orbit.Stake
	for i, ancestor := range block.Ancestors {
		if !committee.IsValidIndex(ancestor.Author) {
			return orbit.InvalidAuthorityIndexError{Index: ancestor.Author, Max: orbit.AuthorityIndex(committee.Size() - 1)}
		}
		if (i == 0 && ancestor.Author != block.Author) || (i > 0 && ancestor.Author == block.Author) {
			return orbit.InvalidAncestorPositionError{
				BlockAuthority:    block.Author,
				AncestorAuthority: ancestor.Author,
				Position:          i,
			}
		}
		if ancestor.Round >= block.Round {
			return orbit.InvalidAncestorRoundError{Ancestor: ancestor.Round, Block: block.Round}
		}
		if ancestor.Round == orbit.GenesisRound {
			if _, ok := v.genesis[ancestor]; !ok {
				return orbit.InvalidGenesisAncestorError{Ref: ancestor}
			}
		}
		if seenAncestors[ancestor.Author] {
			return orbit.DuplicatedAncestorAuthorityError{Author: ancestor.Author}
		}
		seenAncestors[ancestor.Author] = true
		if ancestor.Round == block.Round-1 {
			parentStakes += committee.Stake(ancestor.Author)
		}
	}
	if !committee.ReachedQuorum(parentStakes) {
		return orbit.InsufficientParentStakesError{ParentStakes: parentStakes, Quorum: committee.QuorumThreshold()}
	}

	batch := make([][]byte, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		batch = append(batch, tx)
	}
	err = v.CheckTransactions(batch)
	if err != nil {
		return err
	}

	err = v.txVerifier.VerifyBatch(batch)
	if err != nil {
		return orbit.NewInvalidTransactionError(err)
	}
	return nil
}

// CheckTransactions enforces the protocol's payload limits. A limit of 0
// disables the corresponding check.
func (v *SignedBlockVerifier) CheckTransactions(batch [][]byte) error {
	maxSize := int(v.limits.MaxTransactionSizeBytes)
	if maxSize > 0 {
		for _, tx := range batch {
			if len(tx) > maxSize {
				return orbit.TransactionTooLargeError{Size: len(tx), Limit: maxSize}
			}
		}
	}

	maxCount := int(v.limits.MaxNumTransactionsInBlock)
	if maxCount > 0 && len(batch) > maxCount {
		return orbit.TooManyTransactionsError{Count: len(batch), Limit: maxCount}
	}

	maxTotal := int(v.limits.MaxTransactionsInBlockBytes)
	if maxTotal > 0 {
		total := 0
		for _, tx := range batch {
			total += len(tx)
		}
		if total > maxTotal {
			return orbit.TooManyTransactionBytesError{Size: total, Limit: maxTotal}
		}
	}
	return nil
}

// CheckAncestors enforces that the block's timestamp does not precede any of
// its ancestors' timestamps. This is the only check that needs the
// ancestors' content rather than just their refs.
func (v *SignedBlockVerifier) CheckAncestors(block *orbit.VerifiedBlock, ancestors []*orbit.VerifiedBlock) error {
	var maxTimestamp uint64
	for _, ancestor := range ancestors {
		if ancestor.TimestampMs() > maxTimestamp {
			maxTimestamp = ancestor.TimestampMs()
		}
	}
	if block.TimestampMs() < maxTimestamp {
		return orbit.InvalidBlockTimestampError{MaxAncestor: maxTimestamp, Actual: block.TimestampMs()}
	}
	return nil
}

// NoopVerifier accepts every block. Test and benchmark double.
type NoopVerifier struct{}

var _ BlockVerifier = (*NoopVerifier)(nil)

func (NoopVerifier) Verify(*orbit.SignedBlock) error {
	return nil
}

func (NoopVerifier) CheckAncestors(*orbit.VerifiedBlock, []*orbit.VerifiedBlock) error {
	return nil
}
