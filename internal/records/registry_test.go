package records

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lohithgsk/medledger/pkg/events"
	"github.com/lohithgsk/medledger/pkg/logger"
	"github.com/lohithgsk/medledger/pkg/types"
)

// stubConsent is a canned ConsentVerifier
type stubConsent struct {
	granted map[string]bool
}

func (s *stubConsent) grant(patient, accessor types.Principal, dataType string) {
	if s.granted == nil {
		s.granted = make(map[string]bool)
	}
	s.granted[fmt.Sprintf("%s|%s|%s", patient, accessor, dataType)] = true
}

func (s *stubConsent) CheckConsent(patient, accessor types.Principal, dataType string) (bool, int64) {
	return s.granted[fmt.Sprintf("%s|%s|%s", patient, accessor, dataType)], 0
}

// stubProposals is a canned ProposalVerifier
type stubProposals struct {
	executed map[string][3]string // proposal ID -> patient, dataType, proposer
}

func (s *stubProposals) execute(id string, patient types.Principal, dataType string, proposer types.Principal) {
	if s.executed == nil {
		s.executed = make(map[string][3]string)
	}
	s.executed[id] = [3]string{string(patient), dataType, string(proposer)}
}

func (s *stubProposals) ExecutedProposalScope(proposalID string) (types.Principal, string, types.Principal, bool) {
	scope, ok := s.executed[proposalID]
	if !ok {
		return "", "", "", false
	}
	return types.Principal(scope[0]), scope[1], types.Principal(scope[2]), true
}

func (s *stubProposals) HasExecutedProposal(patient types.Principal, dataType string, proposer types.Principal) bool {
	for _, scope := range s.executed {
		if scope[0] == string(patient) && scope[1] == dataType && scope[2] == string(proposer) {
			return true
		}
	}
	return false
}

const testAdmin = types.Principal("admin")

func newTestRegistry() (*Registry, *stubConsent, *stubProposals, *events.Log) {
	consent := &stubConsent{}
	proposals := &stubProposals{}
	eventLog := events.NewLog()
	reg := NewRegistry(testAdmin, consent, proposals, eventLog, logger.New("debug"))
	return reg, consent, proposals, eventLog
}

// register adds doctor-1 as a provider and registers one record for
// patient-1.
func register(t *testing.T, reg *Registry) string {
	t.Helper()
	require.NoError(t, reg.AddProvider(testAdmin, "doctor-1", "Dr. Adams"))
	id, err := reg.RegisterRecord("doctor-1", "patient-1", "prescription", types.CategoryPrescription, "cid-1", "initial visit", true, "key-1", false)
	require.NoError(t, err)
	return id
}

func TestRegistry_AddProvider(t *testing.T) {
	reg, _, _, _ := newTestRegistry()

	require.NoError(t, reg.AddProvider(testAdmin, "doctor-1", "Dr. Adams"))

	isProvider, name := reg.ProviderInfo("doctor-1")
	assert.True(t, isProvider)
	assert.Equal(t, "Dr. Adams", name)

	// Admin is implicitly a provider
	isProvider, _ = reg.ProviderInfo(testAdmin)
	assert.True(t, isProvider)

	t.Run("admin only", func(t *testing.T) {
		err := reg.AddProvider("doctor-1", "doctor-2", "Dr. Brown")
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeAuthorization, types.ErrorTypeOf(err))

		err = reg.RemoveProvider("doctor-1", "doctor-1")
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeAuthorization, types.ErrorTypeOf(err))
	})

	require.NoError(t, reg.RemoveProvider(testAdmin, "doctor-1"))
	isProvider, _ = reg.ProviderInfo("doctor-1")
	assert.False(t, isProvider)
}

func TestRegistry_RegisterRecord(t *testing.T) {
	reg, _, _, eventLog := newTestRegistry()

	id := register(t, reg)

	rec, err := reg.RecordDetails(id)
	require.NoError(t, err)
	assert.Equal(t, types.Principal("patient-1"), rec.Patient)
	assert.Equal(t, types.Principal("doctor-1"), rec.Provider)
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, types.RecordActive, rec.Status)
	assert.True(t, rec.Encrypted)

	lookedUp, err := reg.RecordByContentRef("cid-1")
	require.NoError(t, err)
	assert.Equal(t, id, lookedUp)

	assert.Equal(t, 1, reg.TotalRecords())
	assert.Len(t, eventLog.ByType(events.TypeRecordRegistered), 1)
}

func TestRegistry_RegisterRecord_Errors(t *testing.T) {
	reg, _, _, _ := newTestRegistry()
	require.NoError(t, reg.AddProvider(testAdmin, "doctor-1", "Dr. Adams"))

	t.Run("not a provider", func(t *testing.T) {
		_, err := reg.RegisterRecord("stranger", "patient-1", "prescription", types.CategoryPrescription, "cid-x", "", false, "", false)
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeAuthorization, types.ErrorTypeOf(err))
		assert.Contains(t, err.Error(), "not authorized provider")
	})

	t.Run("empty fields", func(t *testing.T) {
		_, err := reg.RegisterRecord("doctor-1", "patient-1", "", types.CategoryPrescription, "cid-x", "", false, "", false)
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeValidation, types.ErrorTypeOf(err))

		_, err = reg.RegisterRecord("doctor-1", "patient-1", "prescription", types.CategoryPrescription, "", "", false, "", false)
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeValidation, types.ErrorTypeOf(err))
	})

	t.Run("duplicate content ref", func(t *testing.T) {
		_, err := reg.RegisterRecord("doctor-1", "patient-1", "prescription", types.CategoryPrescription, "cid-dup", "", false, "", false)
		require.NoError(t, err)

		_, err = reg.RegisterRecord("doctor-1", "patient-2", "imaging", types.CategoryImaging, "cid-dup", "", false, "", false)
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeConflict, types.ErrorTypeOf(err))
		assert.Contains(t, err.Error(), "content reference already registered")
	})
}

func TestRegistry_IsAuthorizedToView(t *testing.T) {
	reg, consent, proposals, _ := newTestRegistry()
	id := register(t, reg)

	t.Run("patient and registering provider", func(t *testing.T) {
		assert.True(t, reg.IsAuthorizedToView(id, "patient-1"))
		assert.True(t, reg.IsAuthorizedToView(id, "doctor-1"))
	})

	t.Run("stranger denied", func(t *testing.T) {
		assert.False(t, reg.IsAuthorizedToView(id, "stranger"))
		assert.False(t, reg.IsAuthorizedToView("no-such-record", "patient-1"))
	})

	t.Run("consent grants access", func(t *testing.T) {
		assert.False(t, reg.IsAuthorizedToView(id, "doctor-2"))
		consent.grant("patient-1", "doctor-2", "prescription")
		assert.True(t, reg.IsAuthorizedToView(id, "doctor-2"))
	})

	t.Run("executed proposal grants access", func(t *testing.T) {
		assert.False(t, reg.IsAuthorizedToView(id, "researcher-1"))
		proposals.execute("prop-1", "patient-1", "prescription", "researcher-1")
		assert.True(t, reg.IsAuthorizedToView(id, "researcher-1"))
	})

	t.Run("share grant is time bound", func(t *testing.T) {
		base := time.Now()
		reg.now = func() time.Time { return base }
		require.NoError(t, reg.ShareRecord("patient-1", id, "auditor-1", 24*time.Hour, "annual audit"))
		assert.True(t, reg.IsAuthorizedToView(id, "auditor-1"))

		reg.now = func() time.Time { return base.Add(25 * time.Hour) }
		assert.False(t, reg.IsAuthorizedToView(id, "auditor-1"))
		reg.now = time.Now
	})
}

func TestRegistry_IsAuthorizedToView_EmergencyBypass(t *testing.T) {
	reg, _, _, _ := newTestRegistry()
	require.NoError(t, reg.AddProvider(testAdmin, "doctor-1", "Dr. Adams"))
	require.NoError(t, reg.AddProvider(testAdmin, "doctor-er", "Dr. Reyes"))

	id, err := reg.RegisterRecord("doctor-1", "patient-1", "emergency_contact", types.CategoryEmergency, "cid-er", "", false, "", true)
	require.NoError(t, err)

	// Any authorized provider may view an emergency-accessible record
	assert.True(t, reg.IsAuthorizedToView(id, "doctor-er"))
	assert.False(t, reg.IsAuthorizedToView(id, "stranger"))
}

func TestRegistry_AccessRecord(t *testing.T) {
	reg, _, _, eventLog := newTestRegistry()
	id := register(t, reg)

	result, err := reg.AccessRecord("patient-1", id, "self review", "")
	require.NoError(t, err)
	assert.Equal(t, "cid-1", result.ContentRef)
	assert.Equal(t, "key-1", result.EncryptionKeyRef)

	history, err := reg.AccessHistory(id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.Principal("patient-1"), history[0].Accessor)
	assert.Equal(t, "self review", history[0].Reason)

	assert.Len(t, eventLog.ByType(events.TypeRecordAccessed), 1)
}

func TestRegistry_AccessRecord_Denied(t *testing.T) {
	reg, _, _, eventLog := newTestRegistry()
	id := register(t, reg)

	_, err := reg.AccessRecord("stranger", id, "curiosity", "")
	require.Error(t, err)
	assert.Equal(t, types.ErrorTypeAuthorization, types.ErrorTypeOf(err))
	assert.Contains(t, err.Error(), "not authorized to access this record")

	// Denied attempts leave no access history and no access event
	history, _ := reg.AccessHistory(id)
	assert.Empty(t, history)
	assert.Empty(t, eventLog.ByType(events.TypeRecordAccessed))

	_, err = reg.AccessRecord("patient-1", "no-such-record", "", "")
	require.Error(t, err)
	assert.Equal(t, types.ErrorTypeNotFound, types.ErrorTypeOf(err))
}

func TestRegistry_AccessRecord_WithEvidence(t *testing.T) {
	reg, _, proposals, _ := newTestRegistry()
	id := register(t, reg)

	proposals.execute("prop-1", "patient-1", "prescription", "researcher-1")
	proposals.execute("prop-other", "patient-2", "imaging", "researcher-2")

	t.Run("matching executed proposal", func(t *testing.T) {
		result, err := reg.AccessRecord("researcher-1", id, "cohort study", "prop-1")
		require.NoError(t, err)
		assert.Equal(t, "cid-1", result.ContentRef)

		history, _ := reg.AccessHistory(id)
		require.Len(t, history, 1)
		assert.Equal(t, "prop-1", history[0].EvidenceRef)
	})

	t.Run("replayed evidence from another proposer", func(t *testing.T) {
		// An executed proposal only authorizes its own proposer;
		// presenting someone else's proposal ID grants nothing.
		assert.False(t, reg.IsAuthorizedToView(id, "outsider"))
		_, err := reg.AccessRecord("outsider", id, "snooping", "prop-1")
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeAuthorization, types.ErrorTypeOf(err))

		history, _ := reg.AccessHistory(id)
		assert.Len(t, history, 1)
	})

	t.Run("evidence scoped to another record", func(t *testing.T) {
		_, err := reg.AccessRecord("researcher-2", id, "wrong scope", "prop-other")
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeAuthorization, types.ErrorTypeOf(err))
	})

	t.Run("bogus evidence falls back to other branches", func(t *testing.T) {
		// The patient stays authorized even when presenting junk evidence
		_, err := reg.AccessRecord("patient-1", id, "self review", "no-such-proposal")
		require.NoError(t, err)
	})
}

func TestRegistry_UpdateRecord(t *testing.T) {
	reg, _, _, eventLog := newTestRegistry()
	id := register(t, reg)

	require.NoError(t, reg.UpdateRecord("doctor-1", id, "cid-2", "dosage adjusted", "follow-up", "key-2"))

	rec, err := reg.RecordDetails(id)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, "cid-2", rec.ContentRef)
	assert.Equal(t, "key-2", rec.EncryptionKeyRef)

	// Old content ref is released, new one resolves
	_, err = reg.RecordByContentRef("cid-1")
	require.Error(t, err)
	lookedUp, err := reg.RecordByContentRef("cid-2")
	require.NoError(t, err)
	assert.Equal(t, id, lookedUp)

	// Updates count as access history
	history, _ := reg.AccessHistory(id)
	require.Len(t, history, 1)
	assert.Equal(t, "dosage adjusted", history[0].Reason)

	updated := eventLog.ByType(events.TypeRecordUpdated)
	require.Len(t, updated, 1)
	assert.Equal(t, 2, updated[0].Payload.(events.RecordUpdated).Version)
}

func TestRegistry_UpdateRecord_Errors(t *testing.T) {
	reg, _, _, _ := newTestRegistry()
	id := register(t, reg)

	_, err := reg.RegisterRecord("doctor-1", "patient-1", "imaging", types.CategoryImaging, "cid-other", "", false, "", false)
	require.NoError(t, err)

	t.Run("unauthorized caller", func(t *testing.T) {
		err := reg.UpdateRecord("stranger", id, "cid-2", "", "", "")
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeAuthorization, types.ErrorTypeOf(err))
	})

	t.Run("content ref collision", func(t *testing.T) {
		err := reg.UpdateRecord("doctor-1", id, "cid-other", "", "", "")
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeConflict, types.ErrorTypeOf(err))
	})

	t.Run("deleted record", func(t *testing.T) {
		require.NoError(t, reg.DeleteRecord("patient-1", id, "cleanup"))
		err := reg.UpdateRecord("doctor-1", id, "cid-3", "", "", "")
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeInvalidState, types.ErrorTypeOf(err))
		assert.Contains(t, err.Error(), "record has been deleted")
	})
}

func TestRegistry_ShareRecord(t *testing.T) {
	reg, _, _, eventLog := newTestRegistry()
	id := register(t, reg)

	t.Run("only patient can share", func(t *testing.T) {
		err := reg.ShareRecord("doctor-1", id, "auditor-1", time.Hour, "audit")
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeAuthorization, types.ErrorTypeOf(err))
		assert.Contains(t, err.Error(), "only patient can share records")
	})

	t.Run("duration must be positive", func(t *testing.T) {
		err := reg.ShareRecord("patient-1", id, "auditor-1", 0, "audit")
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeValidation, types.ErrorTypeOf(err))
	})

	require.NoError(t, reg.ShareRecord("patient-1", id, "auditor-1", 24*time.Hour, "annual audit"))

	rec, err := reg.RecordDetails(id)
	require.NoError(t, err)
	assert.Equal(t, types.RecordShared, rec.Status)
	assert.Len(t, eventLog.ByType(events.TypeRecordShared), 1)

	// The grantee can now read the record
	result, err := reg.AccessRecord("auditor-1", id, "annual audit", "")
	require.NoError(t, err)
	assert.Equal(t, "cid-1", result.ContentRef)
}

func TestRegistry_DeleteRecord(t *testing.T) {
	reg, _, _, eventLog := newTestRegistry()
	id := register(t, reg)

	_, err := reg.AccessRecord("patient-1", id, "before deletion", "")
	require.NoError(t, err)

	require.NoError(t, reg.DeleteRecord("patient-1", id, "no longer needed"))

	rec, err := reg.RecordDetails(id)
	require.NoError(t, err)
	assert.Equal(t, types.RecordDeleted, rec.Status)
	assert.Len(t, eventLog.ByType(events.TypeRecordDeleted), 1)

	// Soft delete: history is retained, the deletion itself is logged
	history, err := reg.AccessHistory(id)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	err = reg.DeleteRecord("patient-1", id, "again")
	require.Error(t, err)
	assert.Equal(t, types.ErrorTypeInvalidState, types.ErrorTypeOf(err))

	err = reg.ShareRecord("patient-1", id, "auditor-1", time.Hour, "audit")
	require.Error(t, err)
	assert.Equal(t, types.ErrorTypeInvalidState, types.ErrorTypeOf(err))
}

func TestRegistry_PatientRecords(t *testing.T) {
	reg, _, _, _ := newTestRegistry()
	first := register(t, reg)

	second, err := reg.RegisterRecord("doctor-1", "patient-1", "imaging", types.CategoryImaging, "cid-2", "", false, "", false)
	require.NoError(t, err)
	third, err := reg.RegisterRecord("doctor-1", "patient-1", "prescription", types.CategoryPrescription, "cid-3", "", false, "", false)
	require.NoError(t, err)
	_, err = reg.RegisterRecord("doctor-1", "patient-2", "prescription", types.CategoryPrescription, "cid-4", "", false, "", false)
	require.NoError(t, err)

	assert.Equal(t, []string{first, second, third}, reg.PatientRecords("patient-1", ""))
	assert.Equal(t, []string{first, third}, reg.PatientRecords("patient-1", "prescription"))
	assert.Equal(t, []string{second}, reg.PatientRecords("patient-1", "imaging"))
	assert.Empty(t, reg.PatientRecords("patient-1", "surgery"))
	assert.Empty(t, reg.PatientRecords("patient-9", ""))

	assert.Equal(t, 4, reg.TotalRecords())
}
