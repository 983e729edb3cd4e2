package domain

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ChangeKind classifies the outcome of reconciling one observation
type ChangeKind string

const (
	ChangeCreated ChangeKind = "Created"
	ChangeUpdated ChangeKind = "Updated"
	ChangeInvalid ChangeKind = "Invalid"
	ChangeFailed  ChangeKind = "Failed"
)

// Change is the per-address outcome of a reconciliation
type Change struct {
	Address string     `json:"address"`
	Kind    ChangeKind `json:"kind"`
	Error   string     `json:"error,omitempty"`

	err error
}

// ChangeSet accumulates the outcomes of one reconciled batch. Each address
// appears once in first-seen order; invalid items and failures that follow an
// applied outcome for the same address are listed as extra entries.
type ChangeSet struct {
	Changes []Change `json:"changes"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Invalid int      `json:"invalid"`
	Failed  int      `json:"failed"`

	index map[string]int
}

// NewChangeSet returns an empty change set
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		Changes: []Change{},
		index:   make(map[string]int),
	}
}

// Record stores the outcome for address. A repeated address keeps its
// original position and is overwritten, except that Created is sticky over
// a later Updated and an applied outcome is never replaced.
func (cs *ChangeSet) Record(address string, kind ChangeKind, err error) {
	if cs.index == nil {
		cs.index = make(map[string]int)
	}

	c := Change{Address: address, Kind: kind, err: err}
	if err != nil {
		c.Error = err.Error()
	}

	i, seen := cs.index[address]
	switch {
	case !seen:
		if kind != ChangeInvalid {
			cs.index[address] = len(cs.Changes)
		}
		cs.Changes = append(cs.Changes, c)
		cs.count(kind, 1)
		return

	// Invalid observations never reached the store, and a failure after a
	// commit does not undo it, so both are listed individually.
	case kind == ChangeInvalid, kind == ChangeFailed && cs.Changes[i].Kind.applied():
		cs.Changes = append(cs.Changes, c)
		cs.count(kind, 1)
		return
	}

	prev := cs.Changes[i]
	if prev.Kind == ChangeCreated && kind == ChangeUpdated {
		return
	}
	cs.count(prev.Kind, -1)
	cs.Changes[i] = c
	cs.count(kind, 1)
}

func (k ChangeKind) applied() bool {
	return k == ChangeCreated || k == ChangeUpdated
}

func (cs *ChangeSet) count(kind ChangeKind, delta int) {
	switch kind {
	case ChangeCreated:
		cs.Created += delta
	case ChangeUpdated:
		cs.Updated += delta
	case ChangeInvalid:
		cs.Invalid += delta
	case ChangeFailed:
		cs.Failed += delta
	}
}

// Applied returns the number of observations committed to the store
func (cs *ChangeSet) Applied() int {
	return cs.Created + cs.Updated
}

// Empty reports whether nothing was recorded
func (cs *ChangeSet) Empty() bool {
	return len(cs.Changes) == 0
}

// Err aggregates the per-item errors, or returns nil if every item applied.
func (cs *ChangeSet) Err() error {
	var result *multierror.Error
	for _, c := range cs.Changes {
		if c.err == nil {
			continue
		}
		result = multierror.Append(result, fmt.Errorf("%s: %w", c.Address, c.err))
	}
	return result.ErrorOrNil()
}

// Summary renders the counters for log lines and API messages
func (cs *ChangeSet) Summary() string {
	return fmt.Sprintf("created=%d updated=%d invalid=%d failed=%d",
		cs.Created, cs.Updated, cs.Invalid, cs.Failed)
}
