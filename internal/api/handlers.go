package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/lohithgsk/medledger/internal/approval"
	"github.com/lohithgsk/medledger/pkg/events"
	"github.com/lohithgsk/medledger/pkg/types"
)

// setupRoutes configures HTTP routes for the ledger API
func (s *Service) setupRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	// Consent routes
	api.HandleFunc("/consents", s.grantConsentHandler).Methods("POST")
	api.HandleFunc("/consents", s.revokeConsentHandler).Methods("DELETE")
	api.HandleFunc("/consents/all", s.revokeAllConsentsHandler).Methods("DELETE")
	api.HandleFunc("/consents/check", s.checkConsentHandler).Methods("POST")
	api.HandleFunc("/consents/details", s.consentDetailsHandler).Methods("GET")
	api.HandleFunc("/patients/{patientId}/consents", s.patientConsentsHandler).Methods("GET")

	// Approval workflow routes
	api.HandleFunc("/approvers", s.addApproverHandler).Methods("POST")
	api.HandleFunc("/approvers/{id}", s.removeApproverHandler).Methods("DELETE")
	api.HandleFunc("/approvers/{id}", s.approverInfoHandler).Methods("GET")
	api.HandleFunc("/policy/signatures", s.updateSignaturePolicyHandler).Methods("PUT")
	api.HandleFunc("/policy/signatures", s.requiredSignaturesHandler).Methods("GET")
	api.HandleFunc("/proposals", s.proposeActionHandler).Methods("POST")
	api.HandleFunc("/proposals", s.listProposalsHandler).Methods("GET")
	api.HandleFunc("/proposals/{id}", s.proposalDetailsHandler).Methods("GET")
	api.HandleFunc("/proposals/{id}/evidence", s.proposalEvidenceHandler).Methods("GET")
	api.HandleFunc("/proposals/{id}/approve", s.approveActionHandler).Methods("POST")
	api.HandleFunc("/proposals/{id}/reject", s.rejectActionHandler).Methods("POST")
	api.HandleFunc("/proposals/{id}/execute", s.executeActionHandler).Methods("POST")
	api.HandleFunc("/proposals/{id}/expire", s.markExpiredHandler).Methods("POST")
	api.HandleFunc("/proposals/{id}/approvals/{approver}", s.hasApprovedHandler).Methods("GET")

	// Record routes
	api.HandleFunc("/providers", s.addProviderHandler).Methods("POST")
	api.HandleFunc("/providers/{id}", s.removeProviderHandler).Methods("DELETE")
	api.HandleFunc("/providers/{id}", s.providerInfoHandler).Methods("GET")
	api.HandleFunc("/records", s.registerRecordHandler).Methods("POST")
	api.HandleFunc("/records/lookup", s.recordByContentRefHandler).Methods("GET")
	api.HandleFunc("/records/{id}", s.recordDetailsHandler).Methods("GET")
	api.HandleFunc("/records/{id}", s.updateRecordHandler).Methods("PUT")
	api.HandleFunc("/records/{id}", s.deleteRecordHandler).Methods("DELETE")
	api.HandleFunc("/records/{id}/access", s.accessRecordHandler).Methods("POST")
	api.HandleFunc("/records/{id}/access-check", s.accessCheckHandler).Methods("GET")
	api.HandleFunc("/records/{id}/share", s.shareRecordHandler).Methods("POST")
	api.HandleFunc("/records/{id}/history", s.accessHistoryHandler).Methods("GET")
	api.HandleFunc("/patients/{patientId}/records", s.patientRecordsHandler).Methods("GET")

	// Event stream and stats
	api.HandleFunc("/events", s.eventsHandler).Methods("GET")
	api.HandleFunc("/stats", s.statsHandler).Methods("GET")

	// Health check
	api.HandleFunc("/health", s.healthCheckHandler).Methods("GET")

	s.logger.Info("Ledger API routes configured")
}

type grantConsentRequest struct {
	Accessor types.Principal `json:"accessor"`
	DataType string          `json:"data_type"`
	Expiry   int64           `json:"expiry"`
}

// grantConsentHandler records consent from the authenticated patient
func (s *Service) grantConsentHandler(w http.ResponseWriter, r *http.Request) {
	var req grantConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patient := s.callerPrincipal(r)
	if err := s.consent.GrantConsent(patient, req.Accessor, req.DataType, req.Expiry); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]string{"message": "Consent granted"})
}

type revokeConsentRequest struct {
	Accessor types.Principal `json:"accessor"`
	DataType string          `json:"data_type"`
}

// revokeConsentHandler deactivates one consent entry of the caller
func (s *Service) revokeConsentHandler(w http.ResponseWriter, r *http.Request) {
	var req revokeConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patient := s.callerPrincipal(r)
	if err := s.consent.RevokeConsent(patient, req.Accessor, req.DataType); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Consent revoked"})
}

// revokeAllConsentsHandler deactivates every active consent of the caller
func (s *Service) revokeAllConsentsHandler(w http.ResponseWriter, r *http.Request) {
	patient := s.callerPrincipal(r)
	if err := s.consent.RevokeAllConsents(patient); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "All consents revoked"})
}

type checkConsentRequest struct {
	Patient  types.Principal `json:"patient"`
	Accessor types.Principal `json:"accessor"`
	DataType string          `json:"data_type"`
}

// checkConsentHandler evaluates a consent triple
func (s *Service) checkConsentHandler(w http.ResponseWriter, r *http.Request) {
	var req checkConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	granted, expiry := s.consent.CheckConsent(req.Patient, req.Accessor, req.DataType)
	s.metrics.RecordConsentCheck(granted)
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"granted": granted,
		"expiry":  expiry,
	})
}

// consentDetailsHandler returns one consent entry identified by query
// parameters.
func (s *Service) consentDetailsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	patient := types.Principal(q.Get("patient"))
	accessor := types.Principal(q.Get("accessor"))
	dataType := q.Get("data_type")

	entry, err := s.consent.ConsentDetails(patient, accessor, dataType)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, entry)
}

// patientConsentsHandler lists a patient's accessors, and per accessor the
// granted data types when the accessor query parameter is set.
func (s *Service) patientConsentsHandler(w http.ResponseWriter, r *http.Request) {
	patient := types.Principal(mux.Vars(r)["patientId"])

	if accessor := r.URL.Query().Get("accessor"); accessor != "" {
		dataTypes := s.consent.GrantedDataTypes(patient, types.Principal(accessor))
		s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"patient":    patient,
			"accessor":   accessor,
			"data_types": dataTypes,
		})
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"patient":   patient,
		"accessors": s.consent.PatientAccessors(patient),
		"active":    s.consent.ActiveConsentCount(patient),
	})
}

type addApproverRequest struct {
	Approver types.Principal `json:"approver"`
	Role     string          `json:"role"`
}

// addApproverHandler adds a principal to the approver set
func (s *Service) addApproverHandler(w http.ResponseWriter, r *http.Request) {
	var req addApproverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := s.approval.AddApprover(s.callerPrincipal(r), req.Approver, req.Role); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]string{"message": "Approver added"})
}

// removeApproverHandler removes a principal from the approver set
func (s *Service) removeApproverHandler(w http.ResponseWriter, r *http.Request) {
	approver := types.Principal(mux.Vars(r)["id"])

	if err := s.approval.RemoveApprover(s.callerPrincipal(r), approver); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Approver removed"})
}

// approverInfoHandler reports approver membership and role
func (s *Service) approverInfoHandler(w http.ResponseWriter, r *http.Request) {
	principal := types.Principal(mux.Vars(r)["id"])
	isApprover, role := s.approval.ApproverInfo(principal)

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"principal":   principal,
		"is_approver": isApprover,
		"role":        role,
	})
}

// updateSignaturePolicyHandler replaces the signature policy for future
// proposals.
func (s *Service) updateSignaturePolicyHandler(w http.ResponseWriter, r *http.Request) {
	var policy approval.SignaturePolicy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := s.approval.UpdateSignaturePolicy(s.callerPrincipal(r), policy); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Signature policy updated"})
}

// requiredSignaturesHandler reports the threshold for an access type
func (s *Service) requiredSignaturesHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("access_type")
	value, err := strconv.Atoi(raw)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid access type", err)
		return
	}

	accessType := types.AccessType(value)
	if !accessType.Valid() {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid access type", nil)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"access_type":         accessType.String(),
		"required_signatures": s.approval.RequiredSignaturesFor(accessType),
	})
}

type proposeActionRequest struct {
	Patient      types.Principal `json:"patient"`
	DataType     string          `json:"data_type"`
	AccessType   int             `json:"access_type"`
	Reason       string          `json:"reason"`
	EvidenceRefs []string        `json:"evidence_refs"`
}

// proposeActionHandler submits a disclosure proposal
func (s *Service) proposeActionHandler(w http.ResponseWriter, r *http.Request) {
	var req proposeActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	proposalID, err := s.approval.ProposeAction(s.callerPrincipal(r), req.Patient, req.DataType, types.AccessType(req.AccessType), req.Reason, req.EvidenceRefs)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.metrics.RecordProposalTransition("created")
	s.writeJSONResponse(w, http.StatusCreated, map[string]string{"proposal_id": proposalID})
}

// listProposalsHandler lists proposal IDs filtered by proposer or status
func (s *Service) listProposalsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if proposer := q.Get("proposer"); proposer != "" {
		s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"proposals": s.approval.ProposalsByProposer(types.Principal(proposer)),
		})
		return
	}

	if raw := q.Get("status"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, "Invalid status", err)
			return
		}
		s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"proposals": s.approval.ProposalsByStatus(types.ProposalStatus(value)),
		})
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"total": s.approval.TotalProposals(),
	})
}

// proposalDetailsHandler returns a proposal snapshot
func (s *Service) proposalDetailsHandler(w http.ResponseWriter, r *http.Request) {
	proposal, err := s.approval.ProposalDetails(mux.Vars(r)["id"])
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, proposal)
}

// proposalEvidenceHandler returns a proposal's evidence references
func (s *Service) proposalEvidenceHandler(w http.ResponseWriter, r *http.Request) {
	evidence, err := s.approval.ProposalEvidence(mux.Vars(r)["id"])
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"evidence_refs": evidence})
}

// approveActionHandler records the caller's approval on a proposal
func (s *Service) approveActionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.approval.ApproveAction(s.callerPrincipal(r), mux.Vars(r)["id"]); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.metrics.RecordProposalTransition("approved")
	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Proposal approved"})
}

type rejectActionRequest struct {
	Reason string `json:"reason"`
}

// rejectActionHandler rejects a pending proposal
func (s *Service) rejectActionHandler(w http.ResponseWriter, r *http.Request) {
	var req rejectActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := s.approval.RejectAction(s.callerPrincipal(r), mux.Vars(r)["id"], req.Reason); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.metrics.RecordProposalTransition("rejected")
	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Proposal rejected"})
}

// executeActionHandler executes an approved proposal
func (s *Service) executeActionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.approval.ExecuteAction(s.callerPrincipal(r), mux.Vars(r)["id"]); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.metrics.RecordProposalTransition("executed")
	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Proposal executed"})
}

// markExpiredHandler marks a pending proposal past its deadline expired
func (s *Service) markExpiredHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.approval.MarkExpired(mux.Vars(r)["id"]); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.metrics.RecordProposalTransition("expired")
	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Proposal expired"})
}

// hasApprovedHandler reports whether an approver signed a proposal
func (s *Service) hasApprovedHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	approved := s.approval.HasApproved(vars["id"], types.Principal(vars["approver"]))

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"has_approved": approved})
}

type addProviderRequest struct {
	Provider types.Principal `json:"provider"`
	Name     string          `json:"name"`
}

// addProviderHandler adds a principal to the authorized-provider set
func (s *Service) addProviderHandler(w http.ResponseWriter, r *http.Request) {
	var req addProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := s.records.AddProvider(s.callerPrincipal(r), req.Provider, req.Name); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]string{"message": "Provider added"})
}

// removeProviderHandler removes a provider
func (s *Service) removeProviderHandler(w http.ResponseWriter, r *http.Request) {
	provider := types.Principal(mux.Vars(r)["id"])

	if err := s.records.RemoveProvider(s.callerPrincipal(r), provider); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Provider removed"})
}

// providerInfoHandler reports provider membership and display name
func (s *Service) providerInfoHandler(w http.ResponseWriter, r *http.Request) {
	principal := types.Principal(mux.Vars(r)["id"])
	isProvider, name := s.records.ProviderInfo(principal)

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"principal":   principal,
		"is_provider": isProvider,
		"name":        name,
	})
}

type registerRecordRequest struct {
	Patient             types.Principal `json:"patient"`
	DataType            string          `json:"data_type"`
	Category            int             `json:"category"`
	ContentRef          string          `json:"content_ref"`
	Metadata            string          `json:"metadata"`
	Encrypted           bool            `json:"encrypted"`
	EncryptionKeyRef    string          `json:"encryption_key_ref"`
	EmergencyAccessible bool            `json:"emergency_accessible"`
}

// registerRecordHandler registers a new record for the calling provider
func (s *Service) registerRecordHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	recordID, err := s.records.RegisterRecord(s.callerPrincipal(r), req.Patient, req.DataType, types.RecordCategory(req.Category), req.ContentRef, req.Metadata, req.Encrypted, req.EncryptionKeyRef, req.EmergencyAccessible)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]string{"record_id": recordID})
}

// recordDetailsHandler returns record metadata
func (s *Service) recordDetailsHandler(w http.ResponseWriter, r *http.Request) {
	record, err := s.records.RecordDetails(mux.Vars(r)["id"])
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, record)
}

type accessRecordRequest struct {
	Reason      string `json:"reason"`
	EvidenceRef string `json:"evidence_ref"`
}

// accessRecordHandler performs an authorized, audited record read
func (s *Service) accessRecordHandler(w http.ResponseWriter, r *http.Request) {
	var req accessRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := s.records.AccessRecord(s.callerPrincipal(r), mux.Vars(r)["id"], req.Reason, req.EvidenceRef)
	if err != nil {
		s.metrics.RecordRecordAccess("denied")
		s.writeCoreError(w, err)
		return
	}

	s.metrics.RecordRecordAccess("granted")
	s.writeJSONResponse(w, http.StatusOK, result)
}

// accessCheckHandler previews the access decision without auditing
func (s *Service) accessCheckHandler(w http.ResponseWriter, r *http.Request) {
	authorized := s.records.IsAuthorizedToView(mux.Vars(r)["id"], s.callerPrincipal(r))
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"authorized": authorized})
}

type updateRecordRequest struct {
	ContentRef       string `json:"content_ref"`
	ChangeReason     string `json:"change_reason"`
	Metadata         string `json:"metadata"`
	EncryptionKeyRef string `json:"encryption_key_ref"`
}

// updateRecordHandler replaces a record's content reference
func (s *Service) updateRecordHandler(w http.ResponseWriter, r *http.Request) {
	var req updateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := s.records.UpdateRecord(s.callerPrincipal(r), mux.Vars(r)["id"], req.ContentRef, req.ChangeReason, req.Metadata, req.EncryptionKeyRef); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Record updated"})
}

type shareRecordRequest struct {
	SharedWith    types.Principal `json:"shared_with"`
	DurationHours int             `json:"duration_hours"`
	Reason        string          `json:"reason"`
}

// shareRecordHandler creates a time-bound share grant
func (s *Service) shareRecordHandler(w http.ResponseWriter, r *http.Request) {
	var req shareRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	duration := time.Duration(req.DurationHours) * time.Hour
	if err := s.records.ShareRecord(s.callerPrincipal(r), mux.Vars(r)["id"], req.SharedWith, duration, req.Reason); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Record shared"})
}

// deleteRecordHandler soft-deletes a record
func (s *Service) deleteRecordHandler(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")

	if err := s.records.DeleteRecord(s.callerPrincipal(r), mux.Vars(r)["id"], reason); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Record deleted"})
}

// accessHistoryHandler returns a record's access history
func (s *Service) accessHistoryHandler(w http.ResponseWriter, r *http.Request) {
	history, err := s.records.AccessHistory(mux.Vars(r)["id"])
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"history": history})
}

// patientRecordsHandler lists a patient's records, optionally filtered by
// data type.
func (s *Service) patientRecordsHandler(w http.ResponseWriter, r *http.Request) {
	patient := types.Principal(mux.Vars(r)["patientId"])
	dataType := r.URL.Query().Get("data_type")

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"records": s.records.PatientRecords(patient, dataType),
	})
}

// recordByContentRefHandler resolves a content reference to a record ID
func (s *Service) recordByContentRefHandler(w http.ResponseWriter, r *http.Request) {
	recordID, err := s.records.RecordByContentRef(r.URL.Query().Get("content_ref"))
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"record_id": recordID})
}

// eventsHandler reads the event stream, filtered by type or sequence
// range.
func (s *Service) eventsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if eventType := q.Get("type"); eventType != "" {
		s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"events": s.eventLog.ByType(events.Type(eventType)),
		})
		return
	}

	var from, to uint64
	if raw := q.Get("from"); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, "Invalid sequence bound", err)
			return
		}
		from = value
	}
	if raw := q.Get("to"); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, "Invalid sequence bound", err)
			return
		}
		to = value
	}

	if from != 0 || to != 0 {
		s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"events": s.eventLog.Range(from, to),
		})
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"events": s.eventLog.All(),
	})
}

// statsHandler returns registry counters
func (s *Service) statsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"total_records":   s.records.TotalRecords(),
		"total_proposals": s.approval.TotalProposals(),
		"total_events":    s.eventLog.Len(),
	})
}

// healthCheckHandler reports service liveness
func (s *Service) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "medledger-api",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
