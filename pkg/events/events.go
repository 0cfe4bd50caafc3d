// Package events provides the append-only event stream emitted by the
// authorization core. Every successful state-changing operation appends
// exactly one event; events carry a globally monotonic sequence position
// inherited from the serialized operation order and are immutable once
// appended. External audit and reporting consumers read the stream through
// the query methods; nothing can mutate or delete an entry.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lohithgsk/medledger/pkg/types"
)

// Type identifies the schema of an event payload
type Type string

const (
	TypeConsentGranted   Type = "ConsentGranted"
	TypeConsentRevoked   Type = "ConsentRevoked"
	TypeConsentChecked   Type = "ConsentChecked"
	TypeProposalCreated  Type = "ProposalCreated"
	TypeProposalApproved Type = "ProposalApproved"
	TypeProposalRejected Type = "ProposalRejected"
	TypeProposalExecuted Type = "ProposalExecuted"
	TypeProposalExpired  Type = "ProposalExpired"
	TypeRecordRegistered Type = "RecordRegistered"
	TypeRecordAccessed   Type = "RecordAccessed"
	TypeRecordUpdated    Type = "RecordUpdated"
	TypeRecordShared     Type = "RecordShared"
	TypeRecordDeleted    Type = "RecordDeleted"
)

// ConsentGranted is emitted when a patient grants consent to an accessor
type ConsentGranted struct {
	Patient  types.Principal `json:"patient"`
	Accessor types.Principal `json:"accessor"`
	DataType string          `json:"data_type"`
	Expiry   int64           `json:"expiry"`
}

// ConsentRevoked is emitted when a consent entry is deactivated
type ConsentRevoked struct {
	Patient  types.Principal `json:"patient"`
	Accessor types.Principal `json:"accessor"`
	DataType string          `json:"data_type"`
}

// ConsentChecked is emitted on every consent check, including read-only
// ones. The check is audited by design; dropping this event silently
// removes audit coverage.
type ConsentChecked struct {
	Patient   types.Principal `json:"patient"`
	Accessor  types.Principal `json:"accessor"`
	DataType  string          `json:"data_type"`
	Granted   bool            `json:"granted"`
	Timestamp time.Time       `json:"timestamp"`
}

// ProposalCreated is emitted when a disclosure proposal is submitted
type ProposalCreated struct {
	ProposalID         string          `json:"proposal_id"`
	Proposer           types.Principal `json:"proposer"`
	Patient            types.Principal `json:"patient"`
	DataType           string          `json:"data_type"`
	Reason             string          `json:"reason"`
	RequiredSignatures int             `json:"required_signatures"`
	Deadline           time.Time       `json:"deadline"`
}

// ProposalApproved is emitted for each accepted approval
type ProposalApproved struct {
	ProposalID       string          `json:"proposal_id"`
	Approver         types.Principal `json:"approver"`
	CurrentApprovals int             `json:"current_approvals"`
}

// ProposalRejected is emitted when an approver rejects a pending proposal
type ProposalRejected struct {
	ProposalID string          `json:"proposal_id"`
	Rejector   types.Principal `json:"rejector"`
	Reason     string          `json:"reason"`
}

// ProposalExecuted is emitted when an approved proposal is executed
type ProposalExecuted struct {
	ProposalID string `json:"proposal_id"`
	Success    bool   `json:"success"`
}

// ProposalExpired is emitted when a pending proposal passes its deadline
// and is explicitly marked expired
type ProposalExpired struct {
	ProposalID string `json:"proposal_id"`
}

// RecordRegistered is emitted when a provider registers a new record
type RecordRegistered struct {
	RecordID   string          `json:"record_id"`
	Patient    types.Principal `json:"patient"`
	Provider   types.Principal `json:"provider"`
	DataType   string          `json:"data_type"`
	ContentRef string          `json:"content_ref"`
	Encrypted  bool            `json:"encrypted"`
	Timestamp  time.Time       `json:"timestamp"`
}

// RecordAccessed is emitted on every successful record access
type RecordAccessed struct {
	RecordID     string          `json:"record_id"`
	Accessor     types.Principal `json:"accessor"`
	Patient      types.Principal `json:"patient"`
	AccessReason string          `json:"access_reason"`
	Timestamp    time.Time       `json:"timestamp"`
}

// RecordUpdated is emitted when a record's content is replaced
type RecordUpdated struct {
	RecordID      string `json:"record_id"`
	NewContentRef string `json:"new_content_ref"`
	Version       int    `json:"version"`
}

// RecordShared is emitted when a patient shares a record
type RecordShared struct {
	RecordID   string          `json:"record_id"`
	SharedWith types.Principal `json:"shared_with"`
}

// RecordDeleted is emitted when a record is soft-deleted
type RecordDeleted struct {
	RecordID string `json:"record_id"`
}

// Event is one immutable entry in the stream. Seq starts at 1 and
// increases by exactly 1 per appended event.
type Event struct {
	Seq       uint64      `json:"seq"`
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Log is the append-only event store shared by the core components
type Log struct {
	mu      sync.RWMutex
	entries []Event
	now     func() time.Time
}

// NewLog creates an empty event log
func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append adds an event to the stream and returns the stored entry
func (l *Log) Append(t Type, payload interface{}) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Event{
		Seq:       uint64(len(l.entries)) + 1,
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: l.now(),
		Payload:   payload,
	}
	l.entries = append(l.entries, e)
	return e
}

// All returns a copy of the full event history in sequence order
func (l *Log) All() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, len(l.entries))
	copy(out, l.entries)
	return out
}

// ByType returns all events of the given type in sequence order
func (l *Log) ByType(t Type) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Event
	for _, e := range l.entries {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Range returns events with from <= Seq <= to. A zero `to` means the end
// of the stream.
func (l *Log) Range(from, to uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if to == 0 || to > uint64(len(l.entries)) {
		to = uint64(len(l.entries))
	}
	if from < 1 {
		from = 1
	}
	if from > to {
		return nil
	}

	out := make([]Event, to-from+1)
	copy(out, l.entries[from-1:to])
	return out
}

// Len returns the number of events appended so far
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
