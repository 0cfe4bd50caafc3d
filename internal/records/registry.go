// Package records implements the authoritative record registry: record
// metadata, the combined access decision over ownership, consent, shares,
// executed approvals and emergency access, and the append-only access
// history attached to every record.
package records

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/lohithgsk/medledger/pkg/events"
	"github.com/lohithgsk/medledger/pkg/logger"
	"github.com/lohithgsk/medledger/pkg/types"
)

// ConsentVerifier is the consent registry view the record registry needs
type ConsentVerifier interface {
	CheckConsent(patient, accessor types.Principal, dataType string) (bool, int64)
}

// ProposalVerifier is the approval workflow view the record registry
// needs: evidence resolution and executed-proposal lookups. Foreign state
// is only ever reached through these queries.
type ProposalVerifier interface {
	ExecutedProposalScope(proposalID string) (patient types.Principal, dataType string, proposer types.Principal, ok bool)
	HasExecutedProposal(patient types.Principal, dataType string, proposer types.Principal) bool
}

// Record holds the metadata for one medical record. Content lives
// off-system behind ContentRef; the registry only arbitrates access to it.
type Record struct {
	ID                  string               `json:"id"`
	Patient             types.Principal      `json:"patient"`
	DataType            string               `json:"data_type"`
	Category            types.RecordCategory `json:"category"`
	ContentRef          string               `json:"content_ref"`
	Metadata            string               `json:"metadata"`
	Encrypted           bool                 `json:"encrypted"`
	EncryptionKeyRef    string               `json:"encryption_key_ref"`
	EmergencyAccessible bool                 `json:"emergency_accessible"`
	Provider            types.Principal      `json:"provider"`
	Version             int                  `json:"version"`
	Status              types.RecordStatus   `json:"status"`
	CreatedAt           time.Time            `json:"created_at"`
}

// AccessEvent is one append-only entry in a record's access history
type AccessEvent struct {
	RecordID    string          `json:"record_id"`
	Accessor    types.Principal `json:"accessor"`
	Reason      string          `json:"reason"`
	EvidenceRef string          `json:"evidence_ref"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ShareGrant is a record-scoped, time-bound access allowance created by
// the record's patient. It layers on top of consent without touching the
// consent registry.
type ShareGrant struct {
	RecordID   string          `json:"record_id"`
	SharedWith types.Principal `json:"shared_with"`
	Expiry     time.Time       `json:"expiry"`
	Reason     string          `json:"reason"`
}

// AccessResult is returned by a successful AccessRecord call. The
// encryption key reference is released on every authorized access and
// never cached: read authorization must be re-proved each time.
type AccessResult struct {
	ContentRef       string `json:"content_ref"`
	EncryptionKeyRef string `json:"encryption_key_ref"`
}

// Registry owns records, their access history and share grants. The admin
// fixed at construction is implicitly an authorized provider.
type Registry struct {
	mu           sync.RWMutex
	admin        types.Principal
	providers    map[types.Principal]bool
	providerName map[types.Principal]string
	records      map[string]*Record
	byContentRef map[string]string // content ref -> record ID
	byPatient    map[types.Principal][]string
	history      map[string][]AccessEvent
	shares       map[string][]ShareGrant

	consent   ConsentVerifier
	proposals ProposalVerifier
	eventLog  *events.Log
	logger    *logger.Logger
	now       func() time.Time
}

// NewRegistry creates an empty record registry
func NewRegistry(admin types.Principal, consent ConsentVerifier, proposals ProposalVerifier, eventLog *events.Log, log *logger.Logger) *Registry {
	return &Registry{
		admin:        admin,
		providers:    make(map[types.Principal]bool),
		providerName: make(map[types.Principal]string),
		records:      make(map[string]*Record),
		byContentRef: make(map[string]string),
		byPatient:    make(map[types.Principal][]string),
		history:      make(map[string][]AccessEvent),
		shares:       make(map[string][]ShareGrant),
		consent:      consent,
		proposals:    proposals,
		eventLog:     eventLog,
		logger:       log,
		now:          time.Now,
	}
}

// AddProvider adds a principal to the authorized-provider set with a
// display name. Admin only.
func (r *Registry) AddProvider(caller, provider types.Principal, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.admin {
		return types.NewAuthorizationError(types.ErrCodeForbidden, "only admin can perform this action")
	}

	r.providers[provider] = true
	r.providerName[provider] = name
	r.logger.WithFields(map[string]interface{}{
		"provider": provider,
		"name":     name,
	}).Info("Provider added")
	return nil
}

// RemoveProvider removes a principal from the authorized-provider set.
// Admin only. Records the provider already registered remain theirs.
func (r *Registry) RemoveProvider(caller, provider types.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.admin {
		return types.NewAuthorizationError(types.ErrCodeForbidden, "only admin can perform this action")
	}

	delete(r.providers, provider)
	delete(r.providerName, provider)
	r.logger.WithField("provider", provider).Info("Provider removed")
	return nil
}

// ProviderInfo returns whether the principal is an authorized provider
// and its display name.
func (r *Registry) ProviderInfo(principal types.Principal) (bool, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isProvider(principal), r.providerName[principal]
}

// RegisterRecord creates a new record. Only authorized providers may
// register; content references are globally unique across all records.
func (r *Registry) RegisterRecord(provider, patient types.Principal, dataType string, category types.RecordCategory, contentRef, metadata string, encrypted bool, encryptionKeyRef string, emergencyAccessible bool) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isProvider(provider) {
		r.logger.Audit(string(provider), "register_record", contentRef, false, nil)
		return "", types.NewAuthorizationError(types.ErrCodeUnauthorized, "not authorized provider")
	}
	if dataType == "" {
		return "", types.NewValidationError(types.ErrCodeInvalidInput, "data type cannot be empty", nil)
	}
	if contentRef == "" {
		return "", types.NewValidationError(types.ErrCodeInvalidInput, "content reference cannot be empty", nil)
	}
	if _, taken := r.byContentRef[contentRef]; taken {
		return "", types.NewConflictError(types.ErrCodeConflict, "content reference already registered")
	}

	now := r.now()
	rec := &Record{
		ID:                  recordID(patient, contentRef, now, len(r.records)),
		Patient:             patient,
		DataType:            dataType,
		Category:            category,
		ContentRef:          contentRef,
		Metadata:            metadata,
		Encrypted:           encrypted,
		EncryptionKeyRef:    encryptionKeyRef,
		EmergencyAccessible: emergencyAccessible,
		Provider:            provider,
		Version:             1,
		Status:              types.RecordActive,
		CreatedAt:           now,
	}

	r.records[rec.ID] = rec
	r.byContentRef[contentRef] = rec.ID
	r.byPatient[patient] = append(r.byPatient[patient], rec.ID)

	r.eventLog.Append(events.TypeRecordRegistered, events.RecordRegistered{
		RecordID:   rec.ID,
		Patient:    patient,
		Provider:   provider,
		DataType:   dataType,
		ContentRef: contentRef,
		Encrypted:  encrypted,
		Timestamp:  now,
	})
	r.logger.Audit(string(provider), "register_record", rec.ID, true, map[string]interface{}{
		"patient":   patient,
		"data_type": dataType,
	})
	return rec.ID, nil
}

// IsAuthorizedToView is the combined access decision: record patient,
// registering provider, active consent, an unexpired share grant, an
// executed proposal held by the principal, or the emergency bypass for
// authorized providers. Pure: no state mutation and no audit side effect,
// so presentation layers can use it for previews.
func (r *Registry) IsAuthorizedToView(recordID string, principal types.Principal) bool {
	r.mu.RLock()
	rec, exists := r.records[recordID]
	if !exists {
		r.mu.RUnlock()
		return false
	}

	if principal == rec.Patient || principal == rec.Provider {
		r.mu.RUnlock()
		return true
	}
	if rec.EmergencyAccessible && r.isProvider(principal) {
		r.mu.RUnlock()
		return true
	}
	now := r.now()
	for _, g := range r.shares[recordID] {
		if g.SharedWith == principal && g.Expiry.After(now) {
			r.mu.RUnlock()
			return true
		}
	}
	patient, dataType := rec.Patient, rec.DataType
	r.mu.RUnlock()

	// Peer lookups happen outside our lock; both are queries on foreign
	// components that never call back into this registry.
	if granted, _ := r.consent.CheckConsent(patient, principal, dataType); granted {
		return true
	}
	return r.proposals.HasExecutedProposal(patient, dataType, principal)
}

// AccessRecord performs an authorized read of a record. When evidenceRef
// names a proposal, that proposal must be executed and scoped to the
// record's patient and data type; otherwise the ownership, consent, share
// and emergency branches decide. Every successful access appends to the
// record's history.
func (r *Registry) AccessRecord(caller types.Principal, recordID, reason, evidenceRef string) (*AccessResult, error) {
	r.mu.RLock()
	rec, exists := r.records[recordID]
	r.mu.RUnlock()
	if !exists {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "record does not exist")
	}

	if !r.authorizedWithEvidence(rec, caller, evidenceRef) {
		r.logger.PHIAccess(string(caller), string(rec.Patient), "access_record", recordID, false, map[string]interface{}{
			"reason": reason,
		})
		return nil, types.NewAuthorizationError(types.ErrCodeUnauthorized, "not authorized to access this record")
	}

	r.mu.Lock()
	r.history[recordID] = append(r.history[recordID], AccessEvent{
		RecordID:    recordID,
		Accessor:    caller,
		Reason:      reason,
		EvidenceRef: evidenceRef,
		Timestamp:   r.now(),
	})
	result := &AccessResult{
		ContentRef:       rec.ContentRef,
		EncryptionKeyRef: rec.EncryptionKeyRef,
	}
	r.mu.Unlock()

	r.eventLog.Append(events.TypeRecordAccessed, events.RecordAccessed{
		RecordID:     recordID,
		Accessor:     caller,
		Patient:      rec.Patient,
		AccessReason: reason,
		Timestamp:    r.now(),
	})
	r.logger.PHIAccess(string(caller), string(rec.Patient), "access_record", recordID, true, map[string]interface{}{
		"reason": reason,
	})
	return result, nil
}

// UpdateRecord replaces a record's content reference, bumping the version
// by exactly one. The caller passes the same authorization gate as access;
// deleted records reject all updates.
func (r *Registry) UpdateRecord(caller types.Principal, recordID, newContentRef, changeReason, newMetadata, newEncryptionKeyRef string) error {
	r.mu.RLock()
	rec, exists := r.records[recordID]
	r.mu.RUnlock()
	if !exists {
		return types.NewNotFoundError(types.ErrCodeNotFound, "record does not exist")
	}

	if !r.authorizedWithEvidence(rec, caller, "") {
		r.logger.PHIAccess(string(caller), string(rec.Patient), "update_record", recordID, false, nil)
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "not authorized to access this record")
	}

	r.mu.Lock()
	if rec.Status == types.RecordDeleted {
		r.mu.Unlock()
		return types.NewInvalidStateError(types.ErrCodeInvalidState, "record has been deleted")
	}
	if newContentRef == "" {
		r.mu.Unlock()
		return types.NewValidationError(types.ErrCodeInvalidInput, "content reference cannot be empty", nil)
	}
	if owner, taken := r.byContentRef[newContentRef]; taken && owner != recordID {
		r.mu.Unlock()
		return types.NewConflictError(types.ErrCodeConflict, "content reference already registered")
	}

	delete(r.byContentRef, rec.ContentRef)
	rec.ContentRef = newContentRef
	rec.Metadata = newMetadata
	rec.EncryptionKeyRef = newEncryptionKeyRef
	rec.Version++
	r.byContentRef[newContentRef] = recordID

	r.history[recordID] = append(r.history[recordID], AccessEvent{
		RecordID:  recordID,
		Accessor:  caller,
		Reason:    changeReason,
		Timestamp: r.now(),
	})
	version := rec.Version
	r.mu.Unlock()

	r.eventLog.Append(events.TypeRecordUpdated, events.RecordUpdated{
		RecordID:      recordID,
		NewContentRef: newContentRef,
		Version:       version,
	})
	r.logger.PHIAccess(string(caller), string(rec.Patient), "update_record", recordID, true, map[string]interface{}{
		"version": version,
		"reason":  changeReason,
	})
	return nil
}

// ShareRecord lets the record's patient grant a principal record-scoped,
// time-bound access. duration is how long the grant stays valid from now.
func (r *Registry) ShareRecord(caller types.Principal, recordID string, sharedWith types.Principal, duration time.Duration, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[recordID]
	if !exists {
		return types.NewNotFoundError(types.ErrCodeNotFound, "record does not exist")
	}
	if caller != rec.Patient {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "only patient can share records")
	}
	if duration <= 0 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "share duration must be positive", nil)
	}
	if rec.Status == types.RecordDeleted {
		return types.NewInvalidStateError(types.ErrCodeInvalidState, "record has been deleted")
	}

	r.shares[recordID] = append(r.shares[recordID], ShareGrant{
		RecordID:   recordID,
		SharedWith: sharedWith,
		Expiry:     r.now().Add(duration),
		Reason:     reason,
	})
	if rec.Status == types.RecordActive {
		rec.Status = types.RecordShared
	}

	r.eventLog.Append(events.TypeRecordShared, events.RecordShared{
		RecordID:   recordID,
		SharedWith: sharedWith,
	})
	r.logger.Audit(string(caller), "share_record", recordID, true, map[string]interface{}{
		"shared_with": sharedWith,
		"reason":      reason,
	})
	return nil
}

// DeleteRecord soft-deletes a record: the status flips to Deleted, future
// updates and shares fail, and the content plus access history stay
// retained for audit.
func (r *Registry) DeleteRecord(caller types.Principal, recordID, reason string) error {
	r.mu.RLock()
	rec, exists := r.records[recordID]
	r.mu.RUnlock()
	if !exists {
		return types.NewNotFoundError(types.ErrCodeNotFound, "record does not exist")
	}

	if !r.authorizedWithEvidence(rec, caller, "") {
		r.logger.PHIAccess(string(caller), string(rec.Patient), "delete_record", recordID, false, nil)
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "not authorized to access this record")
	}

	r.mu.Lock()
	if rec.Status == types.RecordDeleted {
		r.mu.Unlock()
		return types.NewInvalidStateError(types.ErrCodeInvalidState, "record has been deleted")
	}
	rec.Status = types.RecordDeleted
	r.history[recordID] = append(r.history[recordID], AccessEvent{
		RecordID:  recordID,
		Accessor:  caller,
		Reason:    reason,
		Timestamp: r.now(),
	})
	r.mu.Unlock()

	r.eventLog.Append(events.TypeRecordDeleted, events.RecordDeleted{RecordID: recordID})
	r.logger.Audit(string(caller), "delete_record", recordID, true, map[string]interface{}{
		"reason": reason,
	})
	return nil
}

// RecordDetails returns a copy of the record metadata
func (r *Registry) RecordDetails(recordID string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[recordID]
	if !exists {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "record does not exist")
	}
	cp := *rec
	return &cp, nil
}

// PatientRecords returns the patient's record IDs in registration order,
// filtered by data type; an empty data type selects all.
func (r *Registry) PatientRecords(patient types.Principal, dataType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, id := range r.byPatient[patient] {
		if dataType == "" || r.records[id].DataType == dataType {
			out = append(out, id)
		}
	}
	return out
}

// RecordByContentRef resolves a content reference to its record ID
func (r *Registry) RecordByContentRef(contentRef string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byContentRef[contentRef]
	if !exists {
		return "", types.NewNotFoundError(types.ErrCodeNotFound, "record does not exist")
	}
	return id, nil
}

// AccessHistory returns a copy of the record's access history in call
// order.
func (r *Registry) AccessHistory(recordID string) ([]AccessEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.records[recordID]; !exists {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "record does not exist")
	}
	return append([]AccessEvent(nil), r.history[recordID]...), nil
}

// TotalRecords returns the number of records ever registered
func (r *Registry) TotalRecords() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// authorizedWithEvidence decides access for a caller. A non-empty
// evidenceRef that resolves to a proposal must be executed, match the
// record's patient and data type, and have been proposed by the caller;
// on any mismatch the remaining branches still apply, so stale evidence
// does not lock out an otherwise authorized caller.
func (r *Registry) authorizedWithEvidence(rec *Record, caller types.Principal, evidenceRef string) bool {
	if evidenceRef != "" {
		patient, dataType, proposer, ok := r.proposals.ExecutedProposalScope(evidenceRef)
		if ok && patient == rec.Patient && dataType == rec.DataType && proposer == caller {
			return true
		}
	}
	return r.IsAuthorizedToView(rec.ID, caller)
}

// isProvider reports provider-set membership; the admin is implicitly
// authorized. Callers hold the lock.
func (r *Registry) isProvider(principal types.Principal) bool {
	return principal == r.admin || r.providers[principal]
}

// recordID derives a stable identifier from the record's identifying
// fields, the registration time and the arena position.
func recordID(patient types.Principal, contentRef string, createdAt time.Time, seq int) string {
	input := fmt.Sprintf("%s|%s|%d|%d", patient, contentRef, createdAt.UnixNano(), seq)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
