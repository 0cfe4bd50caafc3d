// Package consent implements the patient consent registry: which accessor
// a patient has authorized to view which data category, with an optional
// expiry. Entries are never physically deleted; revocation deactivates
// them and history stays available for audit.
package consent

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

// Entry represents one patient consent grant. At most one entry exists per
// (patient, accessor, dataType) key; granting again overwrites in place.
type Entry struct {
	Patient     types.Principal `json:"patient"`
	Accessor    types.Principal `json:"accessor"`
	DataType    string          `json:"data_type"`
	GrantedAt   time.Time       `json:"granted_at"`
	Expiry      int64           `json:"expiry"` // unix seconds, 0 = indefinite
	Active      bool            `json:"active"`
	ConsentHash string          `json:"consent_hash"`
}

type key struct {
	patient  types.Principal
	accessor types.Principal
	dataType string
}

// Registry tracks consent entries. Mutations are serialized behind a
// single writer lock; pure reads run concurrently. Expiry is evaluated
// lazily at query time, never swept by a timer: an expired entry stays
// stored with Active=true but reports as not granted.
type Registry struct {
	mu        sync.RWMutex
	entries   map[key]*Entry
	byPatient map[types.Principal][]key // first-grant insertion order

	eventLog *events.Log
	logger   *logger.Logger
	now      func() time.Time
}

// NewRegistry creates an empty consent registry
func NewRegistry(eventLog *events.Log, log *logger.Logger) *Registry {
	return &Registry{
		entries:   make(map[key]*Entry),
		byPatient: make(map[types.Principal][]key),
		eventLog:  eventLog,
		logger:    log,
		now:       time.Now,
	}
}

// GrantConsent creates or overwrites the consent entry for
// (patient, accessor, dataType). Expiry is a unix timestamp; zero means
// the consent never expires.
func (r *Registry) GrantConsent(patient, accessor types.Principal, dataType string, expiry int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if accessor == patient {
		r.audit(patient, "grant_consent", dataType, false)
		return types.NewValidationError(types.ErrCodeInvalidInput, "cannot grant consent to yourself", nil)
	}
	if dataType == "" {
		r.audit(patient, "grant_consent", dataType, false)
		return types.NewValidationError(types.ErrCodeInvalidInput, "data type cannot be empty", nil)
	}
	if expiry != 0 && expiry <= now.Unix() {
		r.audit(patient, "grant_consent", dataType, false)
		return types.NewValidationError(types.ErrCodeInvalidInput, "expiry must be in the future", nil)
	}

	k := key{patient: patient, accessor: accessor, dataType: dataType}
	if _, exists := r.entries[k]; !exists {
		r.byPatient[patient] = append(r.byPatient[patient], k)
	}

	r.entries[k] = &Entry{
		Patient:     patient,
		Accessor:    accessor,
		DataType:    dataType,
		GrantedAt:   now,
		Expiry:      expiry,
		Active:      true,
		ConsentHash: consentHash(patient, accessor, dataType, now),
	}

	r.eventLog.Append(events.TypeConsentGranted, events.ConsentGranted{
		Patient:  patient,
		Accessor: accessor,
		DataType: dataType,
		Expiry:   expiry,
	})
	r.audit(patient, "grant_consent", dataType, true)
	return nil
}

// CheckConsent reports whether accessor currently holds active, unexpired
// consent from patient for dataType, and the stored expiry. The check
// itself is audited: even this read emits a ConsentChecked event, so that
// every consultation of consent state is visible to the audit trail.
func (r *Registry) CheckConsent(patient, accessor types.Principal, dataType string) (bool, int64) {
	r.mu.RLock()
	entry, exists := r.entries[key{patient: patient, accessor: accessor, dataType: dataType}]
	now := r.now()

	granted := false
	var expiry int64
	if exists {
		expiry = entry.Expiry
		granted = entry.Active && (entry.Expiry == 0 || entry.Expiry > now.Unix())
	}
	r.mu.RUnlock()

	r.eventLog.Append(events.TypeConsentChecked, events.ConsentChecked{
		Patient:   patient,
		Accessor:  accessor,
		DataType:  dataType,
		Granted:   granted,
		Timestamp: now,
	})
	return granted, expiry
}

// RevokeConsent deactivates the consent entry for
// (patient, accessor, dataType). The entry is retained for audit history.
func (r *Registry) RevokeConsent(patient, accessor types.Principal, dataType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[key{patient: patient, accessor: accessor, dataType: dataType}]
	if !exists {
		r.audit(patient, "revoke_consent", dataType, false)
		return types.NewNotFoundError(types.ErrCodeNotFound, "no active consent found")
	}

	entry.Active = false

	r.eventLog.Append(events.TypeConsentRevoked, events.ConsentRevoked{
		Patient:  patient,
		Accessor: accessor,
		DataType: dataType,
	})
	r.audit(patient, "revoke_consent", dataType, true)
	return nil
}

// RevokeAllConsents deactivates every consent entry owned by patient,
// emitting one ConsentRevoked event per deactivation. Revoking a patient
// with no active entries is a successful no-op, so the call is idempotent.
func (r *Registry) RevokeAllConsents(patient types.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range r.byPatient[patient] {
		entry := r.entries[k]
		if !entry.Active {
			continue
		}
		entry.Active = false
		r.eventLog.Append(events.TypeConsentRevoked, events.ConsentRevoked{
			Patient:  entry.Patient,
			Accessor: entry.Accessor,
			DataType: entry.DataType,
		})
	}

	r.audit(patient, "revoke_all_consents", "", true)
	return nil
}

// PatientAccessors returns every accessor the patient has ever granted
// consent to, in first-grant order. Revoked and expired grants are
// included; this is a history query, not an authorization check.
func (r *Registry) PatientAccessors(patient types.Principal) []types.Principal {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []types.Principal
	seen := make(map[types.Principal]bool)
	for _, k := range r.byPatient[patient] {
		if !seen[k.accessor] {
			seen[k.accessor] = true
			out = append(out, k.accessor)
		}
	}
	return out
}

// GrantedDataTypes returns every data type the patient has ever granted to
// accessor, in first-grant order.
func (r *Registry) GrantedDataTypes(patient, accessor types.Principal) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, k := range r.byPatient[patient] {
		if k.accessor == accessor {
			out = append(out, k.dataType)
		}
	}
	return out
}

// ActiveConsentCount returns the number of currently active, unexpired
// consent entries owned by patient.
func (r *Registry) ActiveConsentCount(patient types.Principal) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now().Unix()
	count := 0
	for _, k := range r.byPatient[patient] {
		entry := r.entries[k]
		if entry.Active && (entry.Expiry == 0 || entry.Expiry > now) {
			count++
		}
	}
	return count
}

// ConsentDetails returns a copy of the stored entry for
// (patient, accessor, dataType).
func (r *Registry) ConsentDetails(patient, accessor types.Principal, dataType string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[key{patient: patient, accessor: accessor, dataType: dataType}]
	if !exists {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "no consent entry found")
	}

	cp := *entry
	return &cp, nil
}

// audit writes a structured audit log line; callers hold the lock, so this
// must not touch registry state.
func (r *Registry) audit(patient types.Principal, action, dataType string, success bool) {
	r.logger.Audit(string(patient), action, "consent", success, map[string]interface{}{
		"data_type": dataType,
	})
}

// consentHash produces the digest stored alongside a grant, binding the
// key fields to the grant time.
func consentHash(patient, accessor types.Principal, dataType string, grantedAt time.Time) string {
	input := fmt.Sprintf("%s|%s|%s|%d", patient, accessor, dataType, grantedAt.UnixNano())
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
