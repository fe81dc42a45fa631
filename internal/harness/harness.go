package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/roach88/hyperhistory/internal/capability"
	"github.com/roach88/hyperhistory/internal/engine"
	"github.com/roach88/hyperhistory/internal/history"
	"github.com/roach88/hyperhistory/internal/keys"
	"github.com/roach88/hyperhistory/internal/passport"
	"github.com/roach88/hyperhistory/internal/store"
	"github.com/roach88/hyperhistory/internal/testutil"
	"github.com/roach88/hyperhistory/internal/value"
)

// Harness is the scenario execution context.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	caps   *capability.Registry
	ids    *testutil.Identities
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh engine journaling to a fresh in-memory
// database. Execution flow:
//  1. Register server grants
//  2. Build and deliver each step in order, checking expect clauses
//  3. Capture the final state
//  4. Evaluate assertions
//
// An error is returned only when the scenario cannot be executed at all;
// failed expectations and assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := discardLogger()

	h := &Harness{
		store:  st,
		caps:   capability.NewRegistry(),
		ids:    testutil.NewIdentities(),
		logger: logger,
	}
	h.registerServers(scenario.Servers)
	h.engine = engine.New(h.caps,
		engine.WithStore(st),
		engine.WithLogger(logger),
		engine.WithBatchTokens(testutil.NewFixedBatchGenerator(scenario.Batch)),
	)

	ctx := context.Background()
	result := NewResult()

	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	h.captureState(result)

	actx := &AssertionContext{
		Ctx:        ctx,
		Engine:     h.engine,
		Store:      st,
		Caps:       h.caps,
		Identities: h.ids,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) registerServers(grants []ServerGrant) {
	for _, g := range grants {
		server := h.ids.Get(g.Identity).Public
		var owner keys.PublicKey
		if g.Owner != "" {
			owner = h.ids.Get(g.Owner).Public
		}
		admins := make([]keys.PublicKey, 0, len(g.Admins))
		for _, name := range g.Admins {
			admins = append(admins, h.ids.Get(name).Public)
		}
		h.caps.Register(server, owner, admins...)
	}
}

// executeSteps delivers every step synchronously, in order.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	delivered := make([]engine.Delivery, 0, len(steps))

	for i, step := range steps {
		var d engine.Delivery
		if step.Redeliver != nil {
			d = delivered[*step.Redeliver]
		} else {
			var err error
			d, err = h.buildDelivery(step)
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}
		delivered = append(delivered, d)

		out := h.engine.Deliver(ctx, d.Block, d.Subject)

		event := TraceEvent{
			Step:   i,
			Author: h.ids.Name(d.Block.Author),
			Kind:   string(out.Kind),
			Status: out.Status.String(),
			Seq:    out.Seq,
		}
		if out.Reason != nil {
			event.Code = string(out.Reason.Code)
		}
		result.AddTrace(event)
		h.logger.Debug("step delivered", "step", i, "status", event.Status, "code", event.Code)

		if step.Expect != nil {
			checkExpect(i, step.Expect, event, result)
		}
	}

	return nil
}

func checkExpect(index int, expect *ExpectClause, event TraceEvent, result *Result) {
	if event.Status != expect.Status {
		got := event.Status
		if event.Code != "" {
			got += " (" + event.Code + ")"
		}
		result.AddError(fmt.Sprintf("steps[%d]: expected status %s, got %s", index, expect.Status, got))
		return
	}
	if expect.Code != "" && event.Code != expect.Code {
		result.AddError(fmt.Sprintf("steps[%d]: expected rejection code %s, got %s", index, expect.Code, event.Code))
	}
}

// buildDelivery signs the block a step describes.
func (h *Harness) buildDelivery(step Step) (engine.Delivery, error) {
	author := h.ids.Get(step.Author)

	var subj engine.Subject
	if step.Server != "" {
		subj.Server = h.ids.Get(step.Server).Public
	}
	if step.Member != "" {
		subj.Member = h.ids.Get(step.Member).Public
	}

	action, err := h.buildAction(step, author)
	if err != nil {
		return engine.Delivery{}, err
	}

	envelopeSigner := author
	if step.ForgedBy != "" {
		envelopeSigner = h.ids.Get(step.ForgedBy)
	}
	b, err := history.SignBlock(envelopeSigner.Secret, action)
	if err != nil {
		return engine.Delivery{}, err
	}
	// A forged envelope still claims the step author.
	b = history.NewBlock(author.Public, b.Action, b.Sign)

	return engine.Delivery{Block: b, Subject: subj}, nil
}

func (h *Harness) buildAction(step Step, author testutil.Identity) (history.Action, error) {
	switch history.Kind(step.Action) {
	case history.KindServerPassportUpdate:
		signer := h.valueSigner(step, author)
		pv, err := h.signValue(step, signer)
		if err != nil {
			return nil, err
		}
		claimed := signer
		if step.ClaimedSigner != "" {
			claimed = h.ids.Get(step.ClaimedSigner)
		}
		return history.ServerPassportUpdate{
			Field:  step.Field,
			Value:  pv.Value,
			Signer: claimed.Public,
			Sign:   pv.Sign,
		}, nil

	case history.KindServerPassportDelete:
		return history.ServerPassportDelete{Field: step.Field}, nil

	case history.KindMembersPassportUpdate:
		pv, err := h.signValue(step, h.valueSigner(step, author))
		if err != nil {
			return nil, err
		}
		return history.MembersPassportUpdate{Field: step.Field, Value: pv.Value, Sign: pv.Sign}, nil

	case history.KindMembersPassportDelete:
		return history.MembersPassportDelete{Field: step.Field}, nil

	case history.KindMembersMessagesNew:
		return history.MembersMessagesNew{ChannelID: step.Channel, Message: step.Message}, nil

	default:
		return nil, fmt.Errorf("unknown action %q", step.Action)
	}
}

func (h *Harness) valueSigner(step Step, author testutil.Identity) testutil.Identity {
	if step.Signer == "" {
		return author
	}
	return h.ids.Get(step.Signer)
}

func (h *Harness) signValue(step Step, signer testutil.Identity) (passport.Value, error) {
	v, err := value.FromAny(step.Value)
	if err != nil {
		return passport.Value{}, fmt.Errorf("value: %w", err)
	}
	return passport.NewValue(signer.Secret, v)
}

// captureState copies engine state into result with identities named.
func (h *Harness) captureState(result *Result) {
	result.State.Applied = h.engine.Applied()

	for _, id := range h.engine.Identities() {
		p, ok := h.engine.PassportFor(id)
		if !ok {
			continue
		}
		fields := make(map[string]FieldState, p.Len())
		for _, name := range p.Fields() {
			pv, _ := p.Get(name)
			signer, _ := p.Signer(name)
			fields[name] = FieldState{Value: pv.Value, Signer: h.ids.Name(signer)}
		}
		result.State.Passports[h.ids.Name(id)] = fields
	}

	for _, ch := range h.engine.Channels() {
		msgs := h.engine.MessagesFor(ch)
		out := make([]MessageState, len(msgs))
		for i, m := range msgs {
			out[i] = MessageState{Seq: m.Seq, Author: h.ids.Name(m.Author), Text: m.Text}
		}
		result.State.Channels[ch] = out
	}
}

// discardLogger suppresses engine logs during scenario runs.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// channelKey renders a channel id as a JSON object key.
func channelKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}
