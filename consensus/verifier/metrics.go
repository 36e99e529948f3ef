package verifier

import (
	"errors"

	"github.com/orbitbft/orbit-go/model/orbit"
	"github.com/orbitbft/orbit-go/module/metrics"
)

// MetricsVerifier wraps a BlockVerifier and records every verification
// outcome, labeling rejections by their error type.
type MetricsVerifier struct {
	verifier BlockVerifier
	metrics  *metrics.ConsensusCollector
}

var _ BlockVerifier = (*MetricsVerifier)(nil)

func NewMetricsVerifier(verifier BlockVerifier, collector *metrics.ConsensusCollector) *MetricsVerifier {
	return &MetricsVerifier{
		verifier: verifier,
		metrics:  collector,
	}
}

func (m *MetricsVerifier) Verify(signed *orbit.SignedBlock) error {
	err := m.verifier.Verify(signed)
	if err != nil {
		m.metrics.BlockRejected(rejectReason(err))
		return err
	}
	m.metrics.BlockVerified()
	return nil
}

func (m *MetricsVerifier) CheckAncestors(block *orbit.VerifiedBlock, ancestors []*orbit.VerifiedBlock) error {
	err := m.verifier.CheckAncestors(block, ancestors)
	if err != nil {
		m.metrics.BlockRejected(rejectReason(err))
	}
	return err
}

// rejectReason maps a verification error to its metrics label.
func rejectReason(err error) string {
	switch {
	case orbit.IsWrongEpochError(err):
		return "wrong_epoch"
	case errors.Is(err, orbit.ErrUnexpectedGenesisBlock):
		return "genesis_round"
	case orbit.IsInvalidAuthorityIndexError(err):
		return "invalid_authority_index"
	case orbit.IsMalformedSignatureError(err):
		return "malformed_signature"
	case orbit.IsSignatureVerificationError(err):
		return "invalid_signature"
	case orbit.IsTooManyAncestorsError(err):
		return "too_many_ancestors"
	case orbit.IsInsufficientParentStakesError(err):
		return "insufficient_parent_stake"
	case orbit.IsInvalidAncestorPositionError(err):
		return "invalid_ancestor_position"
	case orbit.IsInvalidAncestorRoundError(err):
		return "invalid_ancestor_round"
	case orbit.IsInvalidGenesisAncestorError(err):
		return "invalid_genesis_ancestor"
	case orbit.IsDuplicatedAncestorAuthorityError(err):
		return "duplicated_ancestor_authority"
	case orbit.IsTransactionTooLargeError(err):
		return "transaction_too_large"
	case orbit.IsTooManyTransactionsError(err):
		return "too_many_transactions"
	case orbit.IsTooManyTransactionBytesError(err):
		return "too_many_transaction_bytes"
	case orbit.IsInvalidTransactionError(err):
		return "invalid_transaction"
	case orbit.IsInvalidBlockTimestampError(err):
		return "invalid_timestamp"
	default:
		return "other"
	}
}
