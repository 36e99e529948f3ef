package bullshark

import (
	"sync"

	"github.com/ef-ds/deque"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/orbitbft/orbit-go/model/orbit"
	"github.com/orbitbft/orbit-go/module"
	"github.com/orbitbft/orbit-go/module/component"
	"github.com/orbitbft/orbit-go/module/irrecoverable"
)

// Consensus drives the commit rule from a queue of verified blocks. Blocks
// may be submitted from any goroutine; the commit rule itself runs on a
// single worker so DAG mutations stay linearized. Committed sub-DAGs are
// emitted in sequence order on the Commits channel. Once a committed block
// carries the end-of-epoch descriptor, in-flight commits are still emitted,
// then the channel is closed and further submissions are dropped.
type Consensus struct {
	component.Component

	log       zerolog.Logger
	bullshark *Bullshark

	mu      sync.Mutex
	pending deque.Deque

	notifier   module.Notifier
	commits    chan *orbit.CommittedSubDag
	epochEnded *atomic.Bool

	queueWarnThreshold int
}

var _ component.Component = (*Consensus)(nil)

func NewConsensus(
	log zerolog.Logger,
	bullshark *Bullshark,
	queueWarnThreshold int,
) *Consensus {
	c := &Consensus{
		log:                log.With().Str("component", "consensus").Logger(),
		bullshark:          bullshark,
		notifier:           module.NewNotifier(),
		commits:            make(chan *orbit.CommittedSubDag),
		epochEnded:         atomic.NewBool(false),
		queueWarnThreshold: queueWarnThreshold,
	}
	c.Component = component.NewComponentManagerBuilder().
		AddWorker(c.processLoop).
		Build()
	return c
}

// Commits is the ordered output of the commit rule. The channel is closed
// after the epoch's final commit, or on shutdown.
func (c *Consensus) Commits() <-chan *orbit.CommittedSubDag {
	return c.commits
}

// SubmitBlock queues a verified block for the commit rule. Blocks submitted
// after the epoch has ended are dropped.
func (c *Consensus) SubmitBlock(block *orbit.VerifiedBlock) {
	if c.epochEnded.Load() {
		c.log.Debug().Str("block", block.Ref().String()).Msg("epoch ended, dropping block")
		return
	}
	c.mu.Lock()
	c.pending.PushBack(block)
	size := c.pending.Len()
	c.mu.Unlock()

	if size > c.queueWarnThreshold && c.queueWarnThreshold > 0 {
		c.log.Warn().Int("queued", size).Msg("pending block queue is growing")
	}
	c.notifier.Notify()
}

func (c *Consensus) processLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	defer close(c.commits)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.notifier.Channel():
			if done := c.drainPending(ctx); done {
				return
			}
		}
	}
}

// drainPending runs the commit rule over every queued block. It returns true
// once the epoch has ended or the context is cancelled.
func (c *Consensus) drainPending(ctx irrecoverable.SignalerContext) bool {
	for {
		c.mu.Lock()
		next, ok := c.pending.PopFront()
		c.mu.Unlock()
		if !ok {
			return false
		}
		block := next.(*orbit.VerifiedBlock)

		subDags, err := c.bullshark.ProcessBlock(block)
		if err != nil {
			if IsMissingAncestorError(err) {
				// The sync layer resubmits once the causal history is
				// complete.
				c.log.Debug().Err(err).Msg("block arrived before its ancestors, dropping")
				continue
			}
			ctx.Throw(err)
			return true
		}

		for _, subDag := range subDags {
			select {
			case <-ctx.Done():
				return true
			case c.commits <- subDag:
			}
			if subDag.EpochTransition() != nil {
				c.epochEnded.Store(true)
				c.log.Info().
					Uint64("sequence", uint64(subDag.SequenceNumber)).
					Msg("end of epoch committed, consensus stopping")
				return true
			}
		}
	}
}
