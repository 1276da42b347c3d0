// Package denwarenji implements the one-pending-rewind D-Mail hook
// described in SPEC_FULL.md §4.9. Grounded authoritatively on
// soul/denwarenji.rs; the name and structure are carried verbatim since
// the behavior is already minimal and the original Rust is the sole
// reference for it.
package denwarenji

import (
	"sync"

	"github.com/kagent-go/kagent/internal/errs"
)

// DMail is a pending rewind request: a message to inject at the target
// checkpoint and the checkpoint ID to rewind to.
type DMail struct {
	Message      string
	CheckpointID int64
}

// DenwaRenji holds at most one pending DMail at a time.
type DenwaRenji struct {
	mu           sync.Mutex
	pending      *DMail
	nCheckpoints int64
}

// New returns an empty DenwaRenji.
func New() *DenwaRenji {
	return &DenwaRenji{}
}

// SendDMail registers dmail as pending. It fails if a D-Mail is already
// pending, if CheckpointID is negative, or if CheckpointID does not
// refer to a checkpoint issued so far.
func (d *DenwaRenji) SendDMail(dmail DMail) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		return &errs.DenwaRenjiError{Kind: errs.DMailAlreadyPending}
	}
	if dmail.CheckpointID < 0 {
		return &errs.DenwaRenjiError{Kind: errs.DMailNegativeCheckpoint}
	}
	if dmail.CheckpointID >= d.nCheckpoints {
		return &errs.DenwaRenjiError{Kind: errs.DMailInvalidCheckpoint}
	}
	d.pending = &dmail
	return nil
}

// SetNCheckpoints updates the checkpoint count SendDMail validates
// against. The scheduler calls this as checkpoints are issued.
func (d *DenwaRenji) SetNCheckpoints(n int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nCheckpoints = n
}

// FetchPendingDMail takes and clears the pending DMail, if any.
func (d *DenwaRenji) FetchPendingDMail() *DMail {
	d.mu.Lock()
	defer d.mu.Unlock()
	dmail := d.pending
	d.pending = nil
	return dmail
}
