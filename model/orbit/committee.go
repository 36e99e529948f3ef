package orbit

import (
	"fmt"

	"github.com/onflow/flow-go/crypto"
)

// Epoch identifies one committee's reign. The committee is immutable for the
// duration of an epoch and replaced wholesale at reconfiguration.
type Epoch uint64

// Stake is the voting weight of an authority.
type Stake uint64

// AuthorityIndex identifies an authority by its position in the canonical
// committee ordering. Valid indices are in [0, committee size).
type AuthorityIndex uint32

// Authority is one validator's entry in the committee: its stake weight and
// the public key its block signatures are verified against.
type Authority struct {
	Stake     Stake
	PublicKey crypto.PublicKey
}

// Committee is the ordered set of authorities for one epoch. It is immutable
// and safe for concurrent reads. All stake arithmetic and quorum decisions go
// through the committee so that every honest node computes identical results.
type Committee struct {
	epoch           Epoch
	authorities     []Authority
	totalStake      Stake
	quorumThreshold Stake
}

// NewCommittee constructs the committee for the given epoch. The authority
// ordering is canonical and must be identical across all nodes.
func NewCommittee(epoch Epoch, authorities []Authority) (*Committee, error) {
	if len(authorities) == 0 {
		return nil, fmt.Errorf("committee must have at least one authority")
	}
	total := Stake(0)
	for i, authority := range authorities {
		if authority.Stake == 0 {
			return nil, fmt.Errorf("authority %d has zero stake", i)
		}
		total += authority.Stake
	}
	return &Committee{
		epoch:           epoch,
		authorities:     authorities,
		totalStake:      total,
		quorumThreshold: computeQuorumThreshold(total),
	}, nil
}

// computeQuorumThreshold returns the minimal stake t such that 3*t > 2*total,
// i.e. the 2f+1 equivalent for weighted committees.
func computeQuorumThreshold(totalStake Stake) Stake {
	thirdFloor := totalStake / 3 // integer division, includes floor
	threshold := 2 * thirdFloor
	remainder := totalStake % 3
	if remainder <= 1 {
		threshold++
	} else {
		threshold += remainder
	}
	return threshold
}

// Epoch returns the epoch this committee serves.
func (c *Committee) Epoch() Epoch {
	return c.epoch
}

// Size returns the number of authorities in the committee.
func (c *Committee) Size() int {
	return len(c.authorities)
}

// IsValidIndex returns whether the index refers to a committee member.
func (c *Committee) IsValidIndex(index AuthorityIndex) bool {
	return int(index) < len(c.authorities)
}

// Authority returns the authority at the given index.
// Callers must check IsValidIndex first; an out-of-range index panics.
func (c *Committee) Authority(index AuthorityIndex) Authority {
	return c.authorities[index]
}

// Stake returns the stake of the authority at the given index.
func (c *Committee) Stake(index AuthorityIndex) Stake {
	return c.authorities[index].Stake
}

// TotalStake returns the aggregate stake of all authorities.
func (c *Committee) TotalStake() Stake {
	return c.totalStake
}

// QuorumThreshold returns the minimal aggregate stake for a BFT decision,
// tolerating up to f Byzantine stake out of 3f+1.
func (c *Committee) QuorumThreshold() Stake {
	return c.quorumThreshold
}

// ReachedQuorum returns whether the given aggregate stake meets the quorum
// threshold.
func (c *Committee) ReachedQuorum(stake Stake) bool {
	return stake >= c.quorumThreshold
}
