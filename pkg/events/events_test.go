package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lohithgsk/medledger/pkg/types"
)

func TestLog_Append(t *testing.T) {
	log := NewLog()

	first := log.Append(TypeConsentGranted, ConsentGranted{Patient: "patient-1", Accessor: "doctor-1", DataType: "prescription"})
	second := log.Append(TypeConsentRevoked, ConsentRevoked{Patient: "patient-1", Accessor: "doctor-1", DataType: "prescription"})

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, log.Len())

	payload := first.Payload.(ConsentGranted)
	assert.Equal(t, types.Principal("patient-1"), payload.Patient)
}

func TestLog_ByType(t *testing.T) {
	log := NewLog()

	log.Append(TypeConsentGranted, ConsentGranted{Patient: "patient-1"})
	log.Append(TypeRecordRegistered, RecordRegistered{RecordID: "rec-1"})
	log.Append(TypeConsentGranted, ConsentGranted{Patient: "patient-2"})

	granted := log.ByType(TypeConsentGranted)
	require.Len(t, granted, 2)
	assert.Equal(t, uint64(1), granted[0].Seq)
	assert.Equal(t, uint64(3), granted[1].Seq)

	assert.Empty(t, log.ByType(TypeRecordDeleted))
}

func TestLog_Range(t *testing.T) {
	log := NewLog()
	for i := 0; i < 5; i++ {
		log.Append(TypeConsentChecked, ConsentChecked{Patient: "patient-1"})
	}

	middle := log.Range(2, 4)
	require.Len(t, middle, 3)
	assert.Equal(t, uint64(2), middle[0].Seq)
	assert.Equal(t, uint64(4), middle[2].Seq)

	// Zero upper bound means end of stream; bounds are clamped
	assert.Len(t, log.Range(3, 0), 3)
	assert.Len(t, log.Range(0, 2), 2)
	assert.Len(t, log.Range(1, 99), 5)
	assert.Nil(t, log.Range(4, 2))
	assert.Nil(t, log.Range(6, 0))
}

func TestLog_AllReturnsCopy(t *testing.T) {
	log := NewLog()
	log.Append(TypeConsentGranted, ConsentGranted{Patient: "patient-1"})

	all := log.All()
	all[0].Type = TypeRecordDeleted

	assert.Equal(t, TypeConsentGranted, log.All()[0].Type)
}

func TestLog_ConcurrentAppend(t *testing.T) {
	log := NewLog()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				log.Append(TypeConsentChecked, ConsentChecked{Patient: "patient-1"})
			}
		}()
	}
	wg.Wait()

	all := log.All()
	require.Len(t, all, 1000)
	for i, e := range all {
		assert.Equal(t, uint64(i+1), e.Seq)
	}
}
