package orbit

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/onflow/flow-go/crypto"
	"github.com/onflow/flow-go/crypto/hash"
)

// Round is the DAG round a block belongs to. Round 0 is reserved for the
// synthetic genesis blocks, which are never signed or transmitted.
type Round uint32

// GenesisRound is the round of the per-authority synthetic genesis blocks.
const GenesisRound Round = 0

// blockSignatureTag provides domain separation for block signatures.
const blockSignatureTag = "orbit-block-signature-v0"

// DigestLength is the byte length of all content digests.
const DigestLength = 32

// BlockDigest is the content hash of a signed block.
type BlockDigest [DigestLength]byte

func (d BlockDigest) String() string {
	return hex.EncodeToString(d[:4])
}

// TransactionDigest is the content hash of a transaction payload.
type TransactionDigest [DigestLength]byte

func (d TransactionDigest) String() string {
	return hex.EncodeToString(d[:4])
}

// Transaction is an opaque transaction payload carried by a block. Its
// semantic validity is delegated to the TransactionVerifier collaborator.
type Transaction []byte

// Digest returns the content hash of the transaction payload.
func (t Transaction) Digest() TransactionDigest {
	var digest TransactionDigest
	copy(digest[:], computeHash(t))
	return digest
}

// BlockRef is the content-addressed identifier of a DAG vertex:
// (round, author, digest). Refs are totally ordered for deterministic
// iteration and tie-breaking.
type BlockRef struct {
	Round  Round
	Author AuthorityIndex
	Digest BlockDigest
}

func (r BlockRef) String() string {
	return fmt.Sprintf("B%d(%d,%s)", r.Round, r.Author, r.Digest)
}

// Compare orders refs by (round, author, digest). It returns -1, 0 or 1.
func (r BlockRef) Compare(other BlockRef) int {
	if r.Round != other.Round {
		if r.Round < other.Round {
			return -1
		}
		return 1
	}
	if r.Author != other.Author {
		if r.Author < other.Author {
			return -1
		}
		return 1
	}
	return bytes.Compare(r.Digest[:], other.Digest[:])
}

// Block is the unsigned content of a DAG vertex: one authority's proposal for
// one round, with parent pointers into strictly earlier rounds.
type Block struct {
	Epoch        Epoch
	Round        Round
	Author       AuthorityIndex
	Ancestors    []BlockRef
	Transactions []Transaction
	TimestampMs  uint64
	// EndOfEpoch is set by the author on its final proposal of an epoch. The
	// epoch ends once a block carrying the descriptor is committed.
	EndOfEpoch *EpochTransition `cbor:",omitempty"`
}

// SignedBlock is a block together with its author's signature over the block
// content. It has passed no validation yet; only VerifiedBlocks enter the DAG.
type SignedBlock struct {
	Block     Block
	Signature []byte
}

// cborEncMode is the deterministic encoding used for digests and signing
// payloads. All nodes must produce byte-identical encodings of the same block.
var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("could not initialize canonical cbor encoding: %v", err))
	}
}

func computeHash(data []byte) []byte {
	return hash.NewSHA3_256().ComputeHash(data)
}

// signingMessage returns the tagged canonical encoding of the unsigned block,
// which is what the authority signs.
func (b *Block) signingMessage() ([]byte, error) {
	enc, err := cborEncMode.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("could not encode block: %w", err)
	}
	msg := make([]byte, 0, len(blockSignatureTag)+len(enc))
	msg = append(msg, blockSignatureTag...)
	msg = append(msg, enc...)
	return msg, nil
}

// SignBlock signs the block content with the author's private key.
func SignBlock(block Block, key crypto.PrivateKey) (*SignedBlock, error) {
	msg, err := block.signingMessage()
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(msg, hash.NewSHA3_256())
	if err != nil {
		return nil, fmt.Errorf("could not sign block: %w", err)
	}
	return &SignedBlock{Block: block, Signature: sig}, nil
}

// VerifySignature checks the signature against the claimed author's public
// key. The caller must have validated the author index beforehand.
// Error returns:
//   - MalformedSignatureError if the signature bytes are absent or not a
//     well-formed signature for the authority's key scheme
//   - SignatureVerificationError if the signature is well-formed but invalid
func (sb *SignedBlock) VerifySignature(committee *Committee) error {
	if len(sb.Signature) == 0 {
		return NewMalformedSignatureError(fmt.Errorf("signature is empty"))
	}
	msg, err := sb.Block.signingMessage()
	if err != nil {
		return err
	}
	key := committee.Authority(sb.Block.Author).PublicKey
	valid, err := key.Verify(sb.Signature, msg, hash.NewSHA3_256())
	if err != nil {
		return NewMalformedSignatureError(err)
	}
	if !valid {
		return NewSignatureVerificationError(sb.Block.Author)
	}
	return nil
}

// VerifiedBlock is a signed block whose structural and cryptographic
// verification has succeeded. Only verified blocks may be inserted into the
// DAG store. The digest is computed once at construction.
type VerifiedBlock struct {
	SignedBlock
	digest BlockDigest
}

// NewVerifiedBlock wraps a signed block after successful verification,
// computing its content digest. It performs no validation itself.
func NewVerifiedBlock(signed *SignedBlock) (*VerifiedBlock, error) {
	enc, err := cborEncMode.Marshal(signed)
	if err != nil {
		return nil, fmt.Errorf("could not encode signed block: %w", err)
	}
	var digest BlockDigest
	copy(digest[:], computeHash(enc))
	return &VerifiedBlock{SignedBlock: *signed, digest: digest}, nil
}

// Digest returns the cached content digest of the block.
func (v *VerifiedBlock) Digest() BlockDigest {
	return v.digest
}

// Ref returns the DAG vertex key of the block.
func (v *VerifiedBlock) Ref() BlockRef {
	return BlockRef{Round: v.Block.Round, Author: v.Block.Author, Digest: v.digest}
}

// Round returns the round the block was proposed in.
func (v *VerifiedBlock) Round() Round {
	return v.Block.Round
}

// Author returns the index of the proposing authority.
func (v *VerifiedBlock) Author() AuthorityIndex {
	return v.Block.Author
}

// Ancestors returns the block's parent refs. The author's own parent is
// always at position 0.
func (v *VerifiedBlock) Ancestors() []BlockRef {
	return v.Block.Ancestors
}

// TimestampMs returns the author-claimed creation time of the block.
func (v *VerifiedBlock) TimestampMs() uint64 {
	return v.Block.TimestampMs
}

// GenesisBlocks returns the fixed synthetic round-0 blocks for the committee,
// one per authority. They carry no ancestors, transactions or signature, and
// are identical across all nodes for a given committee.
func GenesisBlocks(committee *Committee) []*VerifiedBlock {
	blocks := make([]*VerifiedBlock, 0, committee.Size())
	for i := 0; i < committee.Size(); i++ {
		signed := &SignedBlock{
			Block: Block{
				Epoch:  committee.Epoch(),
				Round:  GenesisRound,
				Author: AuthorityIndex(i),
			},
		}
		block, err := NewVerifiedBlock(signed)
		if err != nil {
			// The genesis encoding is fixed, so this cannot fail.
			panic(fmt.Sprintf("could not build genesis block: %v", err))
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// GenesisRefs returns the refs of the synthetic genesis blocks.
func GenesisRefs(committee *Committee) []BlockRef {
	blocks := GenesisBlocks(committee)
	refs := make([]BlockRef, 0, len(blocks))
	for _, b := range blocks {
		refs = append(refs, b.Ref())
	}
	return refs
}
