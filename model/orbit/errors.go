package orbit

import (
	"errors"
	"fmt"
)

// Validation errors returned by the block verifier. They are precise,
// enumerable and non-retryable: a block failing verification is rejected and
// never stored. All honest nodes reach the same verdict for the same block.

// ErrUnexpectedGenesisBlock is returned for signed blocks claiming round 0.
// Genesis blocks are synthetic and never transmitted.
var ErrUnexpectedGenesisBlock = errors.New("unexpected genesis block")

// WrongEpochError is returned for blocks from a different epoch than the
// local committee's.
type WrongEpochError struct {
	Expected Epoch
	Actual   Epoch
}

func (e WrongEpochError) Error() string {
	return fmt.Sprintf("block epoch %d does not match committee epoch %d", e.Actual, e.Expected)
}

// IsWrongEpochError returns whether err is a WrongEpochError.
func IsWrongEpochError(err error) bool {
	var target WrongEpochError
	return errors.As(err, &target)
}

// InvalidAuthorityIndexError is returned when a block or ancestor names an
// authority index outside the committee.
type InvalidAuthorityIndexError struct {
	Index AuthorityIndex
	Max   AuthorityIndex
}

func (e InvalidAuthorityIndexError) Error() string {
	return fmt.Sprintf("invalid authority index %d, max %d", e.Index, e.Max)
}

// IsInvalidAuthorityIndexError returns whether err is an InvalidAuthorityIndexError.
func IsInvalidAuthorityIndexError(err error) bool {
	var target InvalidAuthorityIndexError
	return errors.As(err, &target)
}

// MalformedSignatureError is returned when signature bytes are absent or
// cryptographically malformed (as opposed to well-formed but invalid).
type MalformedSignatureError struct {
	err error
}

func NewMalformedSignatureError(err error) MalformedSignatureError {
	return MalformedSignatureError{err: err}
}

func (e MalformedSignatureError) Error() string {
	return fmt.Sprintf("malformed block signature: %v", e.err)
}

func (e MalformedSignatureError) Unwrap() error {
	return e.err
}

// IsMalformedSignatureError returns whether err is a MalformedSignatureError.
func IsMalformedSignatureError(err error) bool {
	var target MalformedSignatureError
	return errors.As(err, &target)
}

// SignatureVerificationError is returned when a well-formed signature does
// not verify against the claimed author's public key.
type SignatureVerificationError struct {
	Author AuthorityIndex
}

func NewSignatureVerificationError(author AuthorityIndex) SignatureVerificationError {
	return SignatureVerificationError{Author: author}
}

func (e SignatureVerificationError) Error() string {
	return fmt.Sprintf("block signature verification failed for authority %d", e.Author)
}

// IsSignatureVerificationError returns whether err is a SignatureVerificationError.
func IsSignatureVerificationError(err error) bool {
	var target SignatureVerificationError
	return errors.As(err, &target)
}

// TooManyAncestorsError is returned when a block carries more ancestor refs
// than there are committee members.
type TooManyAncestorsError struct {
	Count int
	Max   int
}

func (e TooManyAncestorsError) Error() string {
	return fmt.Sprintf("block has %d ancestors, max %d", e.Count, e.Max)
}

// IsTooManyAncestorsError returns whether err is a TooManyAncestorsError.
func IsTooManyAncestorsError(err error) bool {
	var target TooManyAncestorsError
	return errors.As(err, &target)
}

// InsufficientParentStakesError is returned when the ancestors at exactly the
// previous round do not carry quorum stake.
type InsufficientParentStakesError struct {
	ParentStakes Stake
	Quorum       Stake
}

func (e InsufficientParentStakesError) Error() string {
	return fmt.Sprintf("block parent stakes %d below quorum %d", e.ParentStakes, e.Quorum)
}

// IsInsufficientParentStakesError returns whether err is an InsufficientParentStakesError.
func IsInsufficientParentStakesError(err error) bool {
	var target InsufficientParentStakesError
	return errors.As(err, &target)
}

// InvalidAncestorPositionError is returned when the author's own parent is
// not at position 0, or appears at any other position.
type InvalidAncestorPositionError struct {
	BlockAuthority    AuthorityIndex
	AncestorAuthority AuthorityIndex
	Position          int
}

func (e InvalidAncestorPositionError) Error() string {
	return fmt.Sprintf("ancestor of authority %d at invalid position %d in block by authority %d",
		e.AncestorAuthority, e.Position, e.BlockAuthority)
}

// IsInvalidAncestorPositionError returns whether err is an InvalidAncestorPositionError.
func IsInvalidAncestorPositionError(err error) bool {
	var target InvalidAncestorPositionError
	return errors.As(err, &target)
}

// InvalidAncestorRoundError is returned when an ancestor ref is not from a
// strictly earlier round than the block.
type InvalidAncestorRoundError struct {
	Ancestor Round
	Block    Round
}

func (e InvalidAncestorRoundError) Error() string {
	return fmt.Sprintf("ancestor round %d not below block round %d", e.Ancestor, e.Block)
}

// IsInvalidAncestorRoundError returns whether err is an InvalidAncestorRoundError.
func IsInvalidAncestorRoundError(err error) bool {
	var target InvalidAncestorRoundError
	return errors.As(err, &target)
}

// InvalidGenesisAncestorError is returned when a round-0 ancestor ref does
// not match the fixed genesis set.
type InvalidGenesisAncestorError struct {
	Ref BlockRef
}

func (e InvalidGenesisAncestorError) Error() string {
	return fmt.Sprintf("invalid genesis ancestor %s", e.Ref)
}

// IsInvalidGenesisAncestorError returns whether err is an InvalidGenesisAncestorError.
func IsInvalidGenesisAncestorError(err error) bool {
	var target InvalidGenesisAncestorError
	return errors.As(err, &target)
}

// DuplicatedAncestorAuthorityError is returned when two ancestor refs name
// the same authority.
type DuplicatedAncestorAuthorityError struct {
	Author AuthorityIndex
}

func (e DuplicatedAncestorAuthorityError) Error() string {
	return fmt.Sprintf("multiple ancestors from authority %d", e.Author)
}

// IsDuplicatedAncestorAuthorityError returns whether err is a DuplicatedAncestorAuthorityError.
func IsDuplicatedAncestorAuthorityError(err error) bool {
	var target DuplicatedAncestorAuthorityError
	return errors.As(err, &target)
}

// TransactionTooLargeError is returned when a single transaction exceeds the
// protocol size limit.
type TransactionTooLargeError struct {
	Size  int
	Limit int
}

func (e TransactionTooLargeError) Error() string {
	return fmt.Sprintf("transaction size %d exceeds limit %d", e.Size, e.Limit)
}

// IsTransactionTooLargeError returns whether err is a TransactionTooLargeError.
func IsTransactionTooLargeError(err error) bool {
	var target TransactionTooLargeError
	return errors.As(err, &target)
}

// TooManyTransactionsError is returned when a block carries more transactions
// than the protocol limit.
type TooManyTransactionsError struct {
	Count int
	Limit int
}

func (e TooManyTransactionsError) Error() string {
	return fmt.Sprintf("block has %d transactions, limit %d", e.Count, e.Limit)
}

// IsTooManyTransactionsError returns whether err is a TooManyTransactionsError.
func IsTooManyTransactionsError(err error) bool {
	var target TooManyTransactionsError
	return errors.As(err, &target)
}

// TooManyTransactionBytesError is returned when a block's aggregate
// transaction bytes exceed the protocol limit.
type TooManyTransactionBytesError struct {
	Size  int
	Limit int
}

func (e TooManyTransactionBytesError) Error() string {
	return fmt.Sprintf("block transaction bytes %d exceed limit %d", e.Size, e.Limit)
}

// IsTooManyTransactionBytesError returns whether err is a TooManyTransactionBytesError.
func IsTooManyTransactionBytesError(err error) bool {
	var target TooManyTransactionBytesError
	return errors.As(err, &target)
}

// InvalidTransactionError wraps a semantic validation failure reported by the
// TransactionVerifier collaborator.
type InvalidTransactionError struct {
	err error
}

func NewInvalidTransactionError(err error) InvalidTransactionError {
	return InvalidTransactionError{err: err}
}

func (e InvalidTransactionError) Error() string {
	return fmt.Sprintf("invalid transaction: %v", e.err)
}

func (e InvalidTransactionError) Unwrap() error {
	return e.err
}

// IsInvalidTransactionError returns whether err is an InvalidTransactionError.
func IsInvalidTransactionError(err error) bool {
	var target InvalidTransactionError
	return errors.As(err, &target)
}

// InvalidBlockTimestampError is returned by the ancestor check when a block's
// timestamp is below the maximum of its resolved ancestors' timestamps.
type InvalidBlockTimestampError struct {
	MaxAncestor uint64
	Actual      uint64
}

func (e InvalidBlockTimestampError) Error() string {
	return fmt.Sprintf("block timestamp %d below max ancestor timestamp %d", e.Actual, e.MaxAncestor)
}

// IsInvalidBlockTimestampError returns whether err is an InvalidBlockTimestampError.
func IsInvalidBlockTimestampError(err error) bool {
	var target InvalidBlockTimestampError
	return errors.As(err, &target)
}
