package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/hyperhistory/internal/history"
	"github.com/roach88/hyperhistory/internal/keys"
	"github.com/roach88/hyperhistory/internal/passport"
)

// dispatch authorizes and applies a verified block. Exactly one passport or
// channel lock is held while commit runs, so per-subject order in the
// journal matches the order changes became visible.
func (e *Engine) dispatch(b history.Block, subj Subject, commit commitFunc) (int64, error) {
	switch act := b.Action.(type) {
	case history.ServerPassportUpdate:
		if subj.Server.IsZero() {
			return 0, newRejection(RejectMissingSubject, "server passport update without a server subject", nil)
		}
		if !e.caps.IsOwnerOrAdmin(subj.Server, act.Signer) {
			return 0, newRejection(RejectNotAuthorized, "signer is neither server owner nor administrator", nil)
		}
		return e.setField(subj.Server, act.Field, passport.Value{Value: act.Value, Sign: act.Sign}, act.Signer, commit)

	case history.ServerPassportDelete:
		if subj.Server.IsZero() {
			return 0, newRejection(RejectMissingSubject, "server passport delete without a server subject", nil)
		}
		if !e.caps.IsOwnerOrAdmin(subj.Server, b.Author) {
			return 0, newRejection(RejectNotAuthorized, "author is neither server owner nor administrator", nil)
		}
		return e.removeField(subj.Server, act.Field, commit)

	case history.MembersPassportUpdate:
		target := memberTarget(b, subj)
		if !target.Equal(b.Author) {
			return 0, newRejection(RejectNotOwner, "author does not own the targeted member passport", nil)
		}
		return e.setField(target, act.Field, passport.Value{Value: act.Value, Sign: act.Sign}, b.Author, commit)

	case history.MembersPassportDelete:
		target := memberTarget(b, subj)
		if !target.Equal(b.Author) {
			return 0, newRejection(RejectNotOwner, "author does not own the targeted member passport", nil)
		}
		return e.removeField(target, act.Field, commit)

	case history.MembersMessagesNew:
		return e.appendMessage(b, act, commit)

	default:
		return 0, newRejection(RejectMalformed, fmt.Sprintf("unsupported action %T", b.Action), nil)
	}
}

func memberTarget(b history.Block, subj Subject) keys.PublicKey {
	if subj.Member.IsZero() {
		return b.Author
	}
	return subj.Member
}

// setField validates v against authority and stores it. If the journal
// write fails the previous value is put back before the lock is released.
func (e *Engine) setField(owner keys.PublicKey, field string, v passport.Value, authority keys.PublicKey, commit commitFunc) (int64, error) {
	gp := e.passportGuard(owner)
	gp.mu.Lock()
	defer gp.mu.Unlock()

	prev, had := gp.p.Get(field)
	prevSigner, _ := gp.p.Signer(field)

	ok, err := gp.p.SetDelegated(field, v, authority)
	if err != nil {
		if errors.Is(err, keys.ErrCryptography) {
			return 0, newRejection(RejectCrypto, "value signature could not be checked", err)
		}
		return 0, newRejection(RejectInvalidValue, "value could not be serialized", err)
	}
	if !ok {
		return 0, newRejection(RejectInvalidValue, "value signature does not verify against its authority", nil)
	}

	seq, err := commit()
	if err != nil {
		if had {
			_, _ = gp.p.SetDelegated(field, prev, prevSigner)
		} else {
			gp.p.Remove(field)
		}
		return 0, err
	}
	gp.touched = true
	return seq, nil
}

func (e *Engine) removeField(owner keys.PublicKey, field string, commit commitFunc) (int64, error) {
	gp := e.passportGuard(owner)
	gp.mu.Lock()
	defer gp.mu.Unlock()

	seq, err := commit()
	if err != nil {
		return 0, err
	}
	gp.p.Remove(field)
	gp.touched = true
	return seq, nil
}

func (e *Engine) appendMessage(b history.Block, act history.MembersMessagesNew, commit commitFunc) (int64, error) {
	ch := e.channelGuard(act.ChannelID)
	ch.mu.Lock()
	defer ch.mu.Unlock()

	seq, err := commit()
	if err != nil {
		return 0, err
	}
	ch.messages = append(ch.messages, Message{
		Seq:       seq,
		Author:    b.Author,
		ChannelID: act.ChannelID,
		Text:      act.Message,
		BlockHash: b.Hash(),
	})
	return seq, nil
}
