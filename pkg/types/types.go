package types

// Principal is an opaque, globally unique identifier for any actor in the
// system: patient, provider, approver, or admin. Principals are
// equality-comparable and never reused. A principal may hold several
// capabilities at once; capabilities are membership tests, not types.
type Principal string

// AccessType represents the kind of disclosure a proposal requests
type AccessType int

const (
	AccessRead AccessType = iota
	AccessWrite
	AccessUpdate
	AccessDelete
	AccessEmergency
	AccessResearch
	AccessInsurance
	AccessLegal
)

// String returns a human-readable name for the access type
func (a AccessType) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessUpdate:
		return "update"
	case AccessDelete:
		return "delete"
	case AccessEmergency:
		return "emergency"
	case AccessResearch:
		return "research"
	case AccessInsurance:
		return "insurance"
	case AccessLegal:
		return "legal"
	default:
		return "unknown"
	}
}

// Valid reports whether the access type is one of the defined values
func (a AccessType) Valid() bool {
	return a >= AccessRead && a <= AccessLegal
}

// ProposalStatus represents the lifecycle state of a disclosure proposal
type ProposalStatus int

const (
	ProposalPending ProposalStatus = iota
	ProposalApproved
	ProposalExecuted
	ProposalRejected
	ProposalExpired
)

// String returns a human-readable name for the proposal status
func (s ProposalStatus) String() string {
	switch s {
	case ProposalPending:
		return "pending"
	case ProposalApproved:
		return "approved"
	case ProposalExecuted:
		return "executed"
	case ProposalRejected:
		return "rejected"
	case ProposalExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// RecordCategory classifies a medical record
type RecordCategory int

const (
	CategoryGeneral RecordCategory = iota
	CategoryPrescription
	CategoryLabResult
	CategoryImaging
	CategorySurgery
	CategoryEmergency
)

// String returns a human-readable name for the record category
func (c RecordCategory) String() string {
	switch c {
	case CategoryGeneral:
		return "general"
	case CategoryPrescription:
		return "prescription"
	case CategoryLabResult:
		return "lab_result"
	case CategoryImaging:
		return "imaging"
	case CategorySurgery:
		return "surgery"
	case CategoryEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// RecordStatus represents the lifecycle state of a medical record
type RecordStatus int

const (
	RecordActive RecordStatus = iota
	RecordShared
	RecordDeleted
)

// String returns a human-readable name for the record status
func (s RecordStatus) String() string {
	switch s {
	case RecordActive:
		return "active"
	case RecordShared:
		return "shared"
	case RecordDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
