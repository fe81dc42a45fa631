package engine

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roach88/hyperhistory/internal/history"
	"github.com/roach88/hyperhistory/internal/keys"
	"github.com/roach88/hyperhistory/internal/passport"
	"github.com/roach88/hyperhistory/internal/store"
)

// Capabilities answers authorization questions about servers.
// The engine never mutates it.
type Capabilities interface {
	IsOwnerOrAdmin(server, candidate keys.PublicKey) bool
}

// Subject is the scope a delivery was received under. Actions carry no
// subject of their own: server actions target Server, member actions
// target Member (or the block author when Member is zero).
type Subject struct {
	Server keys.PublicKey
	Member keys.PublicKey
}

// Status is the result category of one delivery.
type Status int

const (
	StatusApplied Status = iota + 1
	StatusDuplicate
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusDuplicate:
		return "duplicate"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name in JSON output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome reports what the engine did with one delivery.
type Outcome struct {
	Status Status
	Hash   uint64
	Kind   history.Kind
	Seq    int64      // set when applied
	Reason *Rejection // set when rejected
}

// Message is one applied chat message.
type Message struct {
	Seq       int64
	Author    keys.PublicKey
	ChannelID uint64
	Text      string
	BlockHash uint64
}

// OutcomeHandler receives the outcome of every delivery processed by Run.
// Called from the Run goroutine in receipt order.
type OutcomeHandler func(Delivery, Outcome)

type guardedPassport struct {
	mu      sync.Mutex
	p       *passport.Passport
	touched bool // at least one block applied
}

type channel struct {
	mu       sync.Mutex
	messages []Message
}

// Engine applies signed blocks to passport and channel state.
//
// Thread-safety model:
//   - Deliver(), Enqueue(), queries: safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Engine struct {
	caps          Capabilities
	store         *store.Store
	clock         *Clock
	logger        *slog.Logger
	batchGen      BatchTokenGenerator
	batch         atomic.Value // string
	verifyWorkers int
	horizon       int
	handler       OutcomeHandler

	dedup   *dedupSet
	applied atomic.Int64
	queue   *deliveryQueue

	mu        sync.Mutex // guards the two maps, not their entries
	passports map[keys.PublicKey]*guardedPassport
	channels  map[uint64]*channel
}

// DefaultVerifyWorkers is the default signature verification fan-out of Run.
const DefaultVerifyWorkers = 4

// Option configures an Engine.
type Option func(*Engine)

// WithStore attaches a journal. Applied blocks and rejections are written
// to it.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithDedupHorizon bounds the in-memory applied set to the n most recent
// fingerprints. 0 (the default) keeps every fingerprint.
func WithDedupHorizon(n int) Option {
	return func(e *Engine) {
		e.horizon = n
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithVerifyWorkers sets how many signatures Run verifies in parallel.
func WithVerifyWorkers(n int) Option {
	return func(e *Engine) {
		e.verifyWorkers = n
	}
}

// WithBatchTokens sets the batch token generator.
// Defaults to UUIDv7Generator.
func WithBatchTokens(gen BatchTokenGenerator) Option {
	return func(e *Engine) {
		e.batchGen = gen
	}
}

// WithOutcomeHandler sets the callback Run reports outcomes to.
func WithOutcomeHandler(h OutcomeHandler) Option {
	return func(e *Engine) {
		e.handler = h
	}
}

// WithClock starts the engine from an existing clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine that authorizes server actions through caps.
// A nil caps denies every server action.
func New(caps Capabilities, opts ...Option) *Engine {
	if caps == nil {
		caps = denyAll{}
	}

	e := &Engine{
		caps:          caps,
		clock:         NewClock(),
		logger:        slog.Default(),
		batchGen:      UUIDv7Generator{},
		verifyWorkers: DefaultVerifyWorkers,
		queue:         newDeliveryQueue(),
		passports:     make(map[keys.PublicKey]*guardedPassport),
		channels:      make(map[uint64]*channel),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.verifyWorkers < 1 {
		e.verifyWorkers = 1
	}
	e.dedup = newDedupSet(e.horizon)
	e.batch.Store(e.batchGen.Generate())

	return e
}

type denyAll struct{}

func (denyAll) IsOwnerOrAdmin(_, _ keys.PublicKey) bool { return false }

// Deliver runs one block through dedup, verification, authorization and
// application. Safe for concurrent use.
//
// A copy of b that is still being processed elsewhere is waited for: only
// an applied copy makes b a duplicate.
func (e *Engine) Deliver(ctx context.Context, b history.Block, subj Subject) Outcome {
	out, claimed := e.acquire(b)
	if !claimed {
		return out
	}
	return e.finish(ctx, b, subj, out, e.verify(b))
}

// tryClaim computes the fingerprint and reserves it without blocking.
// When it is not claimed, wait is nil for a duplicate and otherwise is
// closed once the pending copy resolves.
func (e *Engine) tryClaim(b history.Block) (out Outcome, claimed bool, wait <-chan struct{}) {
	out = Outcome{Hash: b.Hash(), Kind: kindOf(b)}
	claimed, wait = e.dedup.claim(out.Hash)
	if !claimed && wait == nil {
		e.duplicate(b, &out)
	}
	return out, claimed, wait
}

// acquire reserves b's fingerprint, waiting out pending copies. Returns
// false only for a block that is already applied.
func (e *Engine) acquire(b history.Block) (Outcome, bool) {
	for {
		out, claimed, wait := e.tryClaim(b)
		if claimed || wait == nil {
			return out, claimed
		}
		<-wait
	}
}

func (e *Engine) duplicate(b history.Block, out *Outcome) {
	e.logger.Debug("duplicate block",
		"hash", history.FormatHash(out.Hash),
		"author", b.Author.String(),
		"kind", out.Kind,
	)
	out.Status = StatusDuplicate
}

// verify checks the envelope signature. Touches no engine state.
func (e *Engine) verify(b history.Block) *Rejection {
	ok, err := b.Verify()
	if err != nil {
		if errors.Is(err, keys.ErrCryptography) {
			return newRejection(RejectCrypto, "envelope could not be verified", err)
		}
		return newRejection(RejectMalformed, "action could not be encoded", err)
	}
	if !ok {
		return newRejection(RejectBadSignature, "envelope signature does not verify against author", nil)
	}
	return nil
}

// finish applies a claimed, verified block or records why it was not.
func (e *Engine) finish(ctx context.Context, b history.Block, subj Subject, out Outcome, rej *Rejection) Outcome {
	if rej == nil {
		seq, err := e.dispatch(b, subj, e.journalCommit(ctx, b, subj, out.Hash))
		switch {
		case err == nil:
			e.dedup.commit(out.Hash)
			e.applied.Add(1)
			out.Status = StatusApplied
			out.Seq = seq
			e.logger.Debug("block applied",
				"hash", history.FormatHash(out.Hash),
				"kind", out.Kind,
				"seq", seq,
			)
			return out

		case errors.Is(err, errJournaled):
			e.dedup.commit(out.Hash)
			out.Status = StatusDuplicate
			return out

		default:
			if !errors.As(err, &rej) {
				rej = newRejection(RejectJournal, "apply failed", err)
			}
		}
	}

	e.dedup.release(out.Hash)
	out.Status = StatusRejected
	out.Reason = rej
	e.recordRejection(ctx, b, out)
	return out
}

// recordRejection logs and audits a rejection. Failures to audit are
// logged and otherwise ignored.
func (e *Engine) recordRejection(ctx context.Context, b history.Block, out Outcome) {
	e.logger.Warn("block rejected",
		"hash", history.FormatHash(out.Hash),
		"author", b.Author.String(),
		"kind", out.Kind,
		"code", out.Reason.Code,
		"error", out.Reason,
	)

	if e.store == nil {
		return
	}
	_, err := e.store.WriteRejection(ctx, store.Rejection{
		Hash:    out.Hash,
		Author:  b.Author,
		Kind:    out.Kind,
		Code:    string(out.Reason.Code),
		Message: out.Reason.Error(),
		Batch:   e.Batch(),
	})
	if err != nil {
		e.logger.Error("rejection audit failed",
			"hash", history.FormatHash(out.Hash),
			"error", err,
		)
	}
}

// commitFunc stamps and journals a block. Called with the subject lock
// held, after authorization and validation succeed and before the change
// becomes visible.
type commitFunc func() (int64, error)

func (e *Engine) journalCommit(ctx context.Context, b history.Block, subj Subject, hash uint64) commitFunc {
	return func() (int64, error) {
		seq := e.clock.Next()
		if e.store == nil {
			return seq, nil
		}
		inserted, err := e.store.WriteBlock(ctx, store.Record{
			Seq:    seq,
			Hash:   hash,
			Block:  b,
			Server: subj.Server,
			Member: subj.Member,
			Batch:  e.Batch(),
		})
		if err != nil {
			return 0, newRejection(RejectJournal, "journal write failed", err)
		}
		if !inserted {
			return 0, errJournaled
		}
		return seq, nil
	}
}

func kindOf(b history.Block) history.Kind {
	if b.Action == nil {
		return ""
	}
	return b.Action.Kind()
}

func (e *Engine) passportGuard(id keys.PublicKey) *guardedPassport {
	e.mu.Lock()
	defer e.mu.Unlock()

	gp, ok := e.passports[id]
	if !ok {
		gp = &guardedPassport{p: passport.New(id)}
		e.passports[id] = gp
	}
	return gp
}

func (e *Engine) channelGuard(id uint64) *channel {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch, ok := e.channels[id]
	if !ok {
		ch = &channel{}
		e.channels[id] = ch
	}
	return ch
}

// PassportFor returns a snapshot of the passport owned by id.
// Returns false if no block has been applied to it.
func (e *Engine) PassportFor(id keys.PublicKey) (*passport.Passport, bool) {
	e.mu.Lock()
	gp := e.passports[id]
	e.mu.Unlock()
	if gp == nil {
		return nil, false
	}

	gp.mu.Lock()
	defer gp.mu.Unlock()
	if !gp.touched {
		return nil, false
	}
	return gp.p.Clone(), true
}

// MessagesFor returns a copy of a channel's messages in receipt order.
// An unknown channel yields an empty slice.
func (e *Engine) MessagesFor(channelID uint64) []Message {
	e.mu.Lock()
	ch := e.channels[channelID]
	e.mu.Unlock()
	if ch == nil {
		return []Message{}
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([]Message, len(ch.messages))
	copy(out, ch.messages)
	return out
}

// Identities returns every identity with a passport, sorted by text form.
func (e *Engine) Identities() []keys.PublicKey {
	e.mu.Lock()
	guards := make(map[keys.PublicKey]*guardedPassport, len(e.passports))
	for id, gp := range e.passports {
		guards[id] = gp
	}
	e.mu.Unlock()

	ids := make([]keys.PublicKey, 0, len(guards))
	for id, gp := range guards {
		gp.mu.Lock()
		if gp.touched {
			ids = append(ids, id)
		}
		gp.mu.Unlock()
	}
	slices.SortFunc(ids, func(a, b keys.PublicKey) int {
		return strings.Compare(a.String(), b.String())
	})
	return ids
}

// Channels returns every channel id with at least one message, ascending.
func (e *Engine) Channels() []uint64 {
	e.mu.Lock()
	guards := make(map[uint64]*channel, len(e.channels))
	for id, ch := range e.channels {
		guards[id] = ch
	}
	e.mu.Unlock()

	ids := make([]uint64, 0, len(guards))
	for id, ch := range guards {
		ch.mu.Lock()
		if len(ch.messages) > 0 {
			ids = append(ids, id)
		}
		ch.mu.Unlock()
	}
	slices.Sort(ids)
	return ids
}

// Applied returns the number of blocks applied since construction,
// including restored ones.
func (e *Engine) Applied() int {
	return int(e.applied.Load())
}

// Seen reports whether a fingerprint is in the in-memory applied set.
func (e *Engine) Seen(hash uint64) bool {
	return e.dedup.contains(hash)
}

// Batch returns the current batch token.
func (e *Engine) Batch() string {
	return e.batch.Load().(string)
}

// NewBatch starts a new batch and returns its token.
func (e *Engine) NewBatch() string {
	token := e.batchGen.Generate()
	e.batch.Store(token)
	return token
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}
