package consent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lohithgsk/medledger/pkg/events"
	"github.com/lohithgsk/medledger/pkg/logger"
	"github.com/lohithgsk/medledger/pkg/types"
)

func newTestRegistry() (*Registry, *events.Log) {
	log := events.NewLog()
	return NewRegistry(log, logger.New("debug")), log
}

func TestRegistry_GrantConsent(t *testing.T) {
	reg, eventLog := newTestRegistry()

	err := reg.GrantConsent("patient-1", "doctor-1", "prescription", 0)
	require.NoError(t, err)

	granted, expiry := reg.CheckConsent("patient-1", "doctor-1", "prescription")
	assert.True(t, granted)
	assert.Equal(t, int64(0), expiry)

	grantEvents := eventLog.ByType(events.TypeConsentGranted)
	require.Len(t, grantEvents, 1)
	payload := grantEvents[0].Payload.(events.ConsentGranted)
	assert.Equal(t, types.Principal("patient-1"), payload.Patient)
	assert.Equal(t, types.Principal("doctor-1"), payload.Accessor)
}

func TestRegistry_GrantConsent_Validation(t *testing.T) {
	reg, _ := newTestRegistry()

	t.Run("self grant", func(t *testing.T) {
		err := reg.GrantConsent("patient-1", "patient-1", "prescription", 0)
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeValidation, types.ErrorTypeOf(err))
		assert.Contains(t, err.Error(), "cannot grant consent to yourself")
	})

	t.Run("empty data type", func(t *testing.T) {
		err := reg.GrantConsent("patient-1", "doctor-1", "", 0)
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeValidation, types.ErrorTypeOf(err))
	})

	t.Run("expiry in the past", func(t *testing.T) {
		err := reg.GrantConsent("patient-1", "doctor-1", "prescription", time.Now().Add(-time.Hour).Unix())
		require.Error(t, err)
		assert.Equal(t, types.ErrorTypeValidation, types.ErrorTypeOf(err))
		assert.Contains(t, err.Error(), "expiry must be in the future")
	})
}

func TestRegistry_GrantConsent_OverwritesExisting(t *testing.T) {
	reg, _ := newTestRegistry()

	firstExpiry := time.Now().Add(time.Hour).Unix()
	require.NoError(t, reg.GrantConsent("patient-1", "doctor-1", "prescription", firstExpiry))

	secondExpiry := time.Now().Add(48 * time.Hour).Unix()
	require.NoError(t, reg.GrantConsent("patient-1", "doctor-1", "prescription", secondExpiry))

	granted, expiry := reg.CheckConsent("patient-1", "doctor-1", "prescription")
	assert.True(t, granted)
	assert.Equal(t, secondExpiry, expiry)

	// Re-granting must not duplicate the accessor listing
	assert.Len(t, reg.PatientAccessors("patient-1"), 1)
	assert.Equal(t, 1, reg.ActiveConsentCount("patient-1"))
}

func TestRegistry_CheckConsent_Expiry(t *testing.T) {
	reg, eventLog := newTestRegistry()

	base := time.Now()
	reg.now = func() time.Time { return base }

	expiry := base.Add(time.Hour).Unix()
	require.NoError(t, reg.GrantConsent("patient-1", "doctor-1", "lab_result", expiry))

	granted, _ := reg.CheckConsent("patient-1", "doctor-1", "lab_result")
	assert.True(t, granted)

	// Advance past the expiry: no sweep runs, the entry just stops
	// reporting as granted.
	reg.now = func() time.Time { return base.Add(2 * time.Hour) }

	granted, gotExpiry := reg.CheckConsent("patient-1", "doctor-1", "lab_result")
	assert.False(t, granted)
	assert.Equal(t, expiry, gotExpiry)
	assert.Equal(t, 0, reg.ActiveConsentCount("patient-1"))

	// Both checks were audited even though they mutate nothing
	checkEvents := eventLog.ByType(events.TypeConsentChecked)
	require.Len(t, checkEvents, 2)
	assert.True(t, checkEvents[0].Payload.(events.ConsentChecked).Granted)
	assert.False(t, checkEvents[1].Payload.(events.ConsentChecked).Granted)
}

func TestRegistry_CheckConsent_UnknownTriple(t *testing.T) {
	reg, eventLog := newTestRegistry()

	granted, expiry := reg.CheckConsent("patient-1", "doctor-1", "prescription")
	assert.False(t, granted)
	assert.Equal(t, int64(0), expiry)
	assert.Len(t, eventLog.ByType(events.TypeConsentChecked), 1)
}

func TestRegistry_RevokeConsent(t *testing.T) {
	reg, eventLog := newTestRegistry()

	require.NoError(t, reg.GrantConsent("patient-1", "doctor-1", "prescription", 0))
	require.NoError(t, reg.RevokeConsent("patient-1", "doctor-1", "prescription"))

	granted, _ := reg.CheckConsent("patient-1", "doctor-1", "prescription")
	assert.False(t, granted)
	assert.Len(t, eventLog.ByType(events.TypeConsentRevoked), 1)

	// The entry survives revocation for audit history
	entry, err := reg.ConsentDetails("patient-1", "doctor-1", "prescription")
	require.NoError(t, err)
	assert.False(t, entry.Active)
	assert.NotEmpty(t, entry.ConsentHash)
}

func TestRegistry_RevokeConsent_NotFound(t *testing.T) {
	reg, _ := newTestRegistry()

	err := reg.RevokeConsent("patient-1", "doctor-1", "prescription")
	require.Error(t, err)
	assert.Equal(t, types.ErrorTypeNotFound, types.ErrorTypeOf(err))
	assert.Contains(t, err.Error(), "no active consent found")
}

func TestRegistry_RevokeAllConsents(t *testing.T) {
	reg, eventLog := newTestRegistry()

	require.NoError(t, reg.GrantConsent("patient-1", "doctor-1", "prescription", 0))
	require.NoError(t, reg.GrantConsent("patient-1", "doctor-2", "lab_result", 0))
	require.NoError(t, reg.GrantConsent("patient-2", "doctor-1", "imaging", 0))

	require.NoError(t, reg.RevokeAllConsents("patient-1"))

	assert.Equal(t, 0, reg.ActiveConsentCount("patient-1"))
	assert.Equal(t, 1, reg.ActiveConsentCount("patient-2"))

	// One revocation event per deactivated entry, other patients untouched
	assert.Len(t, eventLog.ByType(events.TypeConsentRevoked), 2)

	granted, _ := reg.CheckConsent("patient-2", "doctor-1", "imaging")
	assert.True(t, granted)
}

func TestRegistry_RevokeAllConsents_Idempotent(t *testing.T) {
	reg, eventLog := newTestRegistry()

	require.NoError(t, reg.GrantConsent("patient-1", "doctor-1", "prescription", 0))
	require.NoError(t, reg.RevokeAllConsents("patient-1"))
	require.NoError(t, reg.RevokeAllConsents("patient-1"))
	require.NoError(t, reg.RevokeAllConsents("patient-with-nothing"))

	assert.Len(t, eventLog.ByType(events.TypeConsentRevoked), 1)
}

func TestRegistry_PatientAccessors_Order(t *testing.T) {
	reg, _ := newTestRegistry()

	require.NoError(t, reg.GrantConsent("patient-1", "doctor-1", "prescription", 0))
	require.NoError(t, reg.GrantConsent("patient-1", "doctor-2", "prescription", 0))
	require.NoError(t, reg.GrantConsent("patient-1", "doctor-1", "lab_result", 0))
	require.NoError(t, reg.RevokeConsent("patient-1", "doctor-2", "prescription"))

	// First-grant order, revoked grants still listed
	assert.Equal(t, []types.Principal{"doctor-1", "doctor-2"}, reg.PatientAccessors("patient-1"))
	assert.Equal(t, []string{"prescription", "lab_result"}, reg.GrantedDataTypes("patient-1", "doctor-1"))
}

func TestRegistry_ConsentDetails_NotFound(t *testing.T) {
	reg, _ := newTestRegistry()

	_, err := reg.ConsentDetails("patient-1", "doctor-1", "prescription")
	require.Error(t, err)
	assert.Equal(t, types.ErrorTypeNotFound, types.ErrorTypeOf(err))
}
