// Package harness runs scripted delivery scenarios against a real history
// engine and checks the outcomes.
//
// # Scenario Format
//
// Scenarios are YAML files. Identities are referred to by name; keys are
// derived deterministically from the name, so the same scenario produces
// the same blocks, fingerprints and sequence numbers on every run.
//
//	name: passport_forgery
//	description: "What this scenario validates"
//	batch: batch-forgery
//	servers:
//	  - identity: hall
//	    owner: hall-owner      # optional, defaults to identity
//	    admins: [moderator]
//	steps:
//	  - author: alice
//	    action: v1.members.passport.update
//	    field: nickname
//	    value: Alice
//	    expect: { status: applied }
//	  - author: alice
//	    action: v1.members.passport.update
//	    field: nickname
//	    value: Alicia
//	    signer: mallory        # value signed by someone else
//	    expect: { status: rejected, code: invalid_value }
//	  - redeliver: 0           # deliver step 0's block again
//	    expect: { status: duplicate }
//	assertions:
//	  - type: passport_field
//	    identity: alice
//	    field: nickname
//	    value: Alice
//
// Step fields:
//   - author: identity that signs the envelope
//   - action: one of the v1.* action kinds
//   - server, member: the delivery subject
//   - field, value: passport field and its value (any YAML value)
//   - signer: identity that signs the value (defaults to author)
//   - claimed_signer: key placed in a server update's signer field
//     (defaults to signer)
//   - forged_by: identity that actually signs the envelope while author is
//     still claimed
//   - channel, message: chat message target and text
//   - redeliver: index of an earlier step whose block is delivered again
//
// # Assertion Types
//
//   - passport_field: identity has field with value (and signer, if given)
//   - passport_absent: identity has no such field, or no passport at all
//     when field is omitted
//   - channel_order: channel holds exactly messages, in order
//   - outcome_count: exactly count outcomes with status (and code)
//   - journal_count: the journal holds exactly count blocks
//   - rejection_count: the journal audited exactly count rejections
//     (with code, if given)
//   - restore_equivalent: an engine restored from the journal exports the
//     same state as the live engine
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory store, derived identities and a fixed
// batch token (scenario.batch, or "test-batch-default"). Golden snapshots
// name identities instead of printing keys, and leave out signatures and
// fingerprints.
package harness
