// Package approval implements the multi-signature disclosure workflow. A
// proposer who already holds narrow patient consent can request broader
// disclosure; a threshold of distinct authorized approvers must sign off
// before the action may be executed, and the original consent is
// re-verified at execution time. Separating propose from approve/execute
// means a single compromised principal cannot unilaterally obtain access,
// and the execution-time re-check closes the window where a patient
// revokes consent between proposal and execution.
package approval

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

// ConsentVerifier is the narrow view of the consent registry the workflow
// needs. Cross-component reads go through the peer's query interface,
// never through shared state.
type ConsentVerifier interface {
	CheckConsent(patient, accessor types.Principal, dataType string) (bool, int64)
}

// SignaturePolicy maps access types to the number of distinct approvals a
// proposal needs. The threshold is resolved once at proposal creation and
// never recomputed for an existing proposal.
type SignaturePolicy struct {
	Standard  int `json:"standard"`
	Emergency int `json:"emergency"`
	Research  int `json:"research"`
	Legal     int `json:"legal"`
	Insurance int `json:"insurance"`
}

// DefaultSignaturePolicy returns the fixed default thresholds
func DefaultSignaturePolicy() SignaturePolicy {
	return SignaturePolicy{
		Standard:  3,
		Emergency: 2,
		Research:  4,
		Legal:     2,
		Insurance: 3,
	}
}

// For resolves the threshold for an access type
func (p SignaturePolicy) For(accessType types.AccessType) int {
	switch accessType {
	case types.AccessEmergency:
		return p.Emergency
	case types.AccessResearch:
		return p.Research
	case types.AccessLegal:
		return p.Legal
	case types.AccessInsurance:
		return p.Insurance
	default:
		// Read, Write, Update, Delete
		return p.Standard
	}
}

// Proposal is a pending request for disclosure of a patient's data
// category. Status transitions are monotonic: Pending -> Approved ->
// Executed, Pending -> Rejected, or Pending -> Expired; nothing leaves a
// terminal state.
type Proposal struct {
	ID                 string               `json:"id"`
	Proposer           types.Principal      `json:"proposer"`
	Patient            types.Principal      `json:"patient"`
	DataType           string               `json:"data_type"`
	AccessType         types.AccessType     `json:"access_type"`
	Reason             string               `json:"reason"`
	EvidenceRefs       []string             `json:"evidence_refs"`
	RequiredSignatures int                  `json:"required_signatures"`
	Approvers          []types.Principal    `json:"approvers"` // insertion order
	Status             types.ProposalStatus `json:"status"`
	CreatedAt          time.Time            `json:"created_at"`
	Deadline           time.Time            `json:"deadline"`
}

// Workflow owns the proposal arena and the authorized-approver set. The
// admin principal fixed at construction is implicitly an authorized
// approver for bootstrapping.
type Workflow struct {
	mu         sync.RWMutex
	admin      types.Principal
	approvers  map[types.Principal]bool
	roles      map[types.Principal]string
	proposals  map[string]*Proposal
	order      []string // creation order of proposal IDs
	byProposer map[types.Principal][]string
	policy     SignaturePolicy
	deadline   time.Duration

	consent  ConsentVerifier
	eventLog *events.Log
	logger   *logger.Logger
	now      func() time.Time
}

// NewWorkflow creates an approval workflow. deadline is the window during
// which a pending proposal can still collect approvals before it may be
// marked expired.
func NewWorkflow(admin types.Principal, policy SignaturePolicy, deadline time.Duration, consent ConsentVerifier, eventLog *events.Log, log *logger.Logger) *Workflow {
	return &Workflow{
		admin:      admin,
		approvers:  make(map[types.Principal]bool),
		roles:      make(map[types.Principal]string),
		proposals:  make(map[string]*Proposal),
		byProposer: make(map[types.Principal][]string),
		policy:     policy,
		deadline:   deadline,
		consent:    consent,
		eventLog:   eventLog,
		logger:     log,
		now:        time.Now,
	}
}

// AddApprover adds a principal to the authorized-approver set with a role
// label. Admin only.
func (w *Workflow) AddApprover(caller, approver types.Principal, role string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if caller != w.admin {
		return types.NewAuthorizationError(types.ErrCodeForbidden, "only admin can perform this action")
	}

	w.approvers[approver] = true
	w.roles[approver] = role
	w.logger.WithFields(map[string]interface{}{
		"approver": approver,
		"role":     role,
	}).Info("Approver added")
	return nil
}

// RemoveApprover removes a principal from the authorized-approver set.
// Admin only. Approvals the principal already cast remain counted.
func (w *Workflow) RemoveApprover(caller, approver types.Principal) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if caller != w.admin {
		return types.NewAuthorizationError(types.ErrCodeForbidden, "only admin can perform this action")
	}

	delete(w.approvers, approver)
	delete(w.roles, approver)
	w.logger.WithField("approver", approver).Info("Approver removed")
	return nil
}

// UpdateSignaturePolicy replaces the threshold table. Admin only. Only
// proposals created afterwards resolve against the new thresholds.
func (w *Workflow) UpdateSignaturePolicy(caller types.Principal, policy SignaturePolicy) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if caller != w.admin {
		return types.NewAuthorizationError(types.ErrCodeForbidden, "only admin can perform this action")
	}
	for name, v := range map[string]int{
		"standard":  policy.Standard,
		"emergency": policy.Emergency,
		"research":  policy.Research,
		"legal":     policy.Legal,
		"insurance": policy.Insurance,
	} {
		if v <= 0 {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				fmt.Sprintf("signature requirement for %s access must be positive", name), nil)
		}
	}

	w.policy = policy
	return nil
}

// ProposeAction submits a disclosure proposal. The proposer must already
// hold active consent from the patient for the data type: a disclosure can
// only be proposed by someone the patient has engaged, even though the
// final data release needs committee sign-off.
func (w *Workflow) ProposeAction(proposer, patient types.Principal, dataType string, accessType types.AccessType, reason string, evidenceRefs []string) (string, error) {
	if reason == "" {
		return "", types.NewValidationError(types.ErrCodeInvalidInput, "reason cannot be empty", nil)
	}
	if dataType == "" {
		return "", types.NewValidationError(types.ErrCodeInvalidInput, "data type cannot be empty", nil)
	}
	if !accessType.Valid() {
		return "", types.NewValidationError(types.ErrCodeInvalidInput, "invalid access type", nil)
	}

	// Consent precondition, checked through the registry's own query so the
	// check is audited like any other.
	granted, _ := w.consent.CheckConsent(patient, proposer, dataType)
	if !granted {
		w.logger.Security("proposal_without_consent", string(proposer), map[string]interface{}{
			"patient":   patient,
			"data_type": dataType,
		})
		return "", types.NewAuthorizationError(types.ErrCodeUnauthorized, "no valid consent from patient")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	p := &Proposal{
		ID:                 proposalID(proposer, patient, dataType, now, len(w.order)),
		Proposer:           proposer,
		Patient:            patient,
		DataType:           dataType,
		AccessType:         accessType,
		Reason:             reason,
		EvidenceRefs:       append([]string(nil), evidenceRefs...),
		RequiredSignatures: w.policy.For(accessType),
		Status:             types.ProposalPending,
		CreatedAt:          now,
		Deadline:           now.Add(w.deadline),
	}

	w.proposals[p.ID] = p
	w.order = append(w.order, p.ID)
	w.byProposer[proposer] = append(w.byProposer[proposer], p.ID)

	w.eventLog.Append(events.TypeProposalCreated, events.ProposalCreated{
		ProposalID:         p.ID,
		Proposer:           proposer,
		Patient:            patient,
		DataType:           dataType,
		Reason:             reason,
		RequiredSignatures: p.RequiredSignatures,
		Deadline:           p.Deadline,
	})
	w.logger.Audit(string(proposer), "propose_action", p.ID, true, map[string]interface{}{
		"patient":             patient,
		"data_type":           dataType,
		"access_type":         accessType.String(),
		"required_signatures": p.RequiredSignatures,
	})
	return p.ID, nil
}

// ApproveAction records one approval. The threshold check happens inside
// the same critical section: the approval that reaches RequiredSignatures
// flips the proposal to Approved atomically, with no separate trigger.
// Approved closes the proposal to further approvals.
func (w *Workflow) ApproveAction(approver types.Principal, proposalID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, exists := w.proposals[proposalID]
	if !exists {
		return types.NewNotFoundError(types.ErrCodeNotFound, "proposal does not exist")
	}
	if !w.isApprover(approver) {
		w.logger.Security("unauthorized_approval_attempt", string(approver), map[string]interface{}{
			"proposal_id": proposalID,
		})
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "not authorized to approve proposals")
	}
	if approver == p.Proposer {
		return types.NewConflictError(types.ErrCodeConflict, "proposer cannot approve own proposal")
	}
	if p.Status != types.ProposalPending {
		return types.NewInvalidStateError(types.ErrCodeInvalidState,
			fmt.Sprintf("proposal is %s, not pending", p.Status))
	}
	for _, a := range p.Approvers {
		if a == approver {
			return types.NewConflictError(types.ErrCodeConflict, "already approved this proposal")
		}
	}

	p.Approvers = append(p.Approvers, approver)
	if len(p.Approvers) >= p.RequiredSignatures {
		p.Status = types.ProposalApproved
	}

	w.eventLog.Append(events.TypeProposalApproved, events.ProposalApproved{
		ProposalID:       p.ID,
		Approver:         approver,
		CurrentApprovals: len(p.Approvers),
	})
	w.logger.Audit(string(approver), "approve_action", p.ID, true, map[string]interface{}{
		"current_approvals":   len(p.Approvers),
		"required_signatures": p.RequiredSignatures,
		"status":              p.Status.String(),
	})
	return nil
}

// RejectAction rejects a pending proposal. Rejection is terminal.
func (w *Workflow) RejectAction(rejector types.Principal, proposalID, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, exists := w.proposals[proposalID]
	if !exists {
		return types.NewNotFoundError(types.ErrCodeNotFound, "proposal does not exist")
	}
	if reason == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "rejection reason required", nil)
	}
	if !w.isApprover(rejector) {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "not authorized to approve proposals")
	}
	if p.Status != types.ProposalPending {
		return types.NewInvalidStateError(types.ErrCodeInvalidState,
			fmt.Sprintf("proposal is %s, not pending", p.Status))
	}

	p.Status = types.ProposalRejected

	w.eventLog.Append(events.TypeProposalRejected, events.ProposalRejected{
		ProposalID: p.ID,
		Rejector:   rejector,
		Reason:     reason,
	})
	w.logger.Audit(string(rejector), "reject_action", p.ID, true, map[string]interface{}{
		"reason": reason,
	})
	return nil
}

// ExecuteAction executes an approved proposal. Consent between the
// original proposer and the patient is re-verified here: approval alone is
// not enough if the patient has since revoked.
func (w *Workflow) ExecuteAction(caller types.Principal, proposalID string) error {
	w.mu.Lock()
	p, exists := w.proposals[proposalID]
	if !exists {
		w.mu.Unlock()
		return types.NewNotFoundError(types.ErrCodeNotFound, "proposal does not exist")
	}
	if p.Status != types.ProposalApproved {
		w.mu.Unlock()
		return types.NewInvalidStateError(types.ErrCodeInvalidState, "proposal not approved")
	}
	proposer, patient, dataType := p.Proposer, p.Patient, p.DataType
	w.mu.Unlock()

	// Consent re-check goes through the registry query outside our lock;
	// the registry audits it and no workflow state is touched until the
	// result is known.
	granted, _ := w.consent.CheckConsent(patient, proposer, dataType)

	w.mu.Lock()
	defer w.mu.Unlock()

	// Re-validate under the lock; a concurrent reject/execute could have
	// moved the proposal while consent was being checked.
	if p.Status != types.ProposalApproved {
		return types.NewInvalidStateError(types.ErrCodeInvalidState, "proposal not approved")
	}
	if !granted {
		w.logger.Audit(string(caller), "execute_action", p.ID, false, map[string]interface{}{
			"reason": "consent revoked",
		})
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "patient consent revoked")
	}

	p.Status = types.ProposalExecuted

	w.eventLog.Append(events.TypeProposalExecuted, events.ProposalExecuted{
		ProposalID: p.ID,
		Success:    true,
	})
	w.logger.Audit(string(caller), "execute_action", p.ID, true, nil)
	return nil
}

// MarkExpired moves a pending proposal past its deadline to Expired.
// Expiry is caller-driven and lazy; the workflow never runs timers.
func (w *Workflow) MarkExpired(proposalID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, exists := w.proposals[proposalID]
	if !exists {
		return types.NewNotFoundError(types.ErrCodeNotFound, "proposal does not exist")
	}
	if p.Status != types.ProposalPending {
		return types.NewInvalidStateError(types.ErrCodeInvalidState,
			fmt.Sprintf("proposal is %s, not pending", p.Status))
	}
	if !w.now().After(p.Deadline) {
		return types.NewInvalidStateError(types.ErrCodeInvalidState, "proposal deadline has not passed")
	}

	p.Status = types.ProposalExpired

	w.eventLog.Append(events.TypeProposalExpired, events.ProposalExpired{ProposalID: p.ID})
	return nil
}

// ProposalDetails returns a copy of the proposal
func (w *Workflow) ProposalDetails(proposalID string) (*Proposal, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	p, exists := w.proposals[proposalID]
	if !exists {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "proposal does not exist")
	}
	return copyProposal(p), nil
}

// ProposalEvidence returns the evidence references attached at creation
func (w *Workflow) ProposalEvidence(proposalID string) ([]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	p, exists := w.proposals[proposalID]
	if !exists {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "proposal does not exist")
	}
	return append([]string(nil), p.EvidenceRefs...), nil
}

// ProposalsByProposer returns the IDs of proposals created by proposer, in
// creation order.
func (w *Workflow) ProposalsByProposer(proposer types.Principal) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.byProposer[proposer]...)
}

// ProposalsByStatus returns the IDs of proposals currently in the given
// status, in creation order.
func (w *Workflow) ProposalsByStatus(status types.ProposalStatus) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var out []string
	for _, id := range w.order {
		if w.proposals[id].Status == status {
			out = append(out, id)
		}
	}
	return out
}

// TotalProposals returns the number of proposals ever created
func (w *Workflow) TotalProposals() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.order)
}

// RequiredSignaturesFor resolves the current threshold for an access type
func (w *Workflow) RequiredSignaturesFor(accessType types.AccessType) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.policy.For(accessType)
}

// IsExecuted reports whether the proposal exists and has been executed
func (w *Workflow) IsExecuted(proposalID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	p, exists := w.proposals[proposalID]
	return exists && p.Status == types.ProposalExecuted
}

// HasApproved reports whether approver has already approved the proposal
func (w *Workflow) HasApproved(proposalID string, approver types.Principal) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	p, exists := w.proposals[proposalID]
	if !exists {
		return false
	}
	for _, a := range p.Approvers {
		if a == approver {
			return true
		}
	}
	return false
}

// ApproverInfo returns whether the principal is an authorized approver and
// its role label.
func (w *Workflow) ApproverInfo(principal types.Principal) (bool, string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isApprover(principal), w.roles[principal]
}

// ExecutedProposalScope returns the patient, data type and proposer of an
// executed proposal. ok is false when the proposal does not exist or has
// not been executed. The record registry uses this to validate evidence
// references presented at access time.
func (w *Workflow) ExecutedProposalScope(proposalID string) (types.Principal, string, types.Principal, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	p, exists := w.proposals[proposalID]
	if !exists || p.Status != types.ProposalExecuted {
		return "", "", "", false
	}
	return p.Patient, p.DataType, p.Proposer, true
}

// HasExecutedProposal reports whether proposer holds any executed proposal
// scoped to (patient, dataType).
func (w *Workflow) HasExecutedProposal(patient types.Principal, dataType string, proposer types.Principal) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, id := range w.byProposer[proposer] {
		p := w.proposals[id]
		if p.Status == types.ProposalExecuted && p.Patient == patient && p.DataType == dataType {
			return true
		}
	}
	return false
}

// isApprover reports approver-set membership; the admin is implicitly
// authorized. Callers hold the lock.
func (w *Workflow) isApprover(principal types.Principal) bool {
	return principal == w.admin || w.approvers[principal]
}

func copyProposal(p *Proposal) *Proposal {
	cp := *p
	cp.EvidenceRefs = append([]string(nil), p.EvidenceRefs...)
	cp.Approvers = append([]types.Principal(nil), p.Approvers...)
	return &cp
}

// proposalID derives a stable identifier from the proposal's identifying
// fields, the creation time and the arena position.
func proposalID(proposer, patient types.Principal, dataType string, createdAt time.Time, seq int) string {
	input := fmt.Sprintf("%s|%s|%s|%d|%d", proposer, patient, dataType, createdAt.UnixNano(), seq)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
