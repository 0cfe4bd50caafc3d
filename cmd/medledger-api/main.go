package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lohithgsk/medledger/internal/api"
	"github.com/lohithgsk/medledger/internal/approval"
	"github.com/lohithgsk/medledger/internal/consent"
	"github.com/lohithgsk/medledger/internal/records"
	"github.com/lohithgsk/medledger/pkg/config"
	"github.com/lohithgsk/medledger/pkg/events"
	"github.com/lohithgsk/medledger/pkg/logger"
	"github.com/lohithgsk/medledger/pkg/types"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	admin := types.Principal(cfg.AdminPrincipal)

	// Wire the core: one shared event log, consent feeding the approval
	// workflow, both feeding the record registry.
	eventLog := events.NewLog()
	consentReg := consent.NewRegistry(eventLog, logger)

	policy := approval.SignaturePolicy{
		Standard:  cfg.Policy.StandardSignatures,
		Emergency: cfg.Policy.EmergencySignatures,
		Research:  cfg.Policy.ResearchSignatures,
		Legal:     cfg.Policy.LegalSignatures,
		Insurance: cfg.Policy.InsuranceSignatures,
	}
	deadline := time.Duration(cfg.Policy.ProposalDeadlineHours) * time.Hour
	workflow := approval.NewWorkflow(admin, policy, deadline, consentReg, eventLog, logger)

	recordReg := records.NewRegistry(admin, consentReg, workflow, eventLog, logger)

	service := api.New(cfg, logger, consentReg, workflow, recordReg, eventLog)

	// Start service in a goroutine
	go func() {
		if err := service.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start medledger API: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down medledger API...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := service.Stop(ctx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	logger.Info("medledger API stopped")
}
