package service

import (
	"context"
	"log/slog"

	"github.com/growpixel/leadmail/internal/model"
)

// DispatchOutcome enumerates where the two-send sequence ended.
type DispatchOutcome int

const (
	DispatchSent DispatchOutcome = iota
	DispatchFailedAtAdmin
	DispatchFailedAtReceipt
)

func (outcome DispatchOutcome) String() string {
	switch outcome {
	case DispatchSent:
		return "sent"
	case DispatchFailedAtAdmin:
		return "failed_at_admin"
	case DispatchFailedAtReceipt:
		return "failed_at_receipt"
	default:
		return "unknown"
	}
}

// DispatchResult is the outcome of one message-pair dispatch. It lives for
// the duration of a single submission and is never shared across requests.
type DispatchResult struct {
	Outcome DispatchOutcome
	Err     error
}

// LeadService processes validated submissions end to end: compose the
// message pair, then dispatch both through the mail channel.
type LeadService interface {
	ProcessSubmission(ctx context.Context, submission model.Submission) error
}

type leadServiceImpl struct {
	sender     EmailSender
	logger     *slog.Logger
	adminEmail string
}

// NewLeadService wires the coordinator with an injected sender so the mail
// channel is fixed at startup, never resolved mid-request.
func NewLeadService(sender EmailSender, logger *slog.Logger, adminEmail string) LeadService {
	return &leadServiceImpl{
		sender:     sender,
		logger:     logger,
		adminEmail: adminEmail,
	}
}

func (serviceInstance *leadServiceImpl) ProcessSubmission(ctx context.Context, submission model.Submission) error {
	adminMessage, receiptMessage := ComposeMessages(submission, serviceInstance.adminEmail)

	serviceInstance.logger.Info(
		"lead_dispatch_started",
		"submission_id", submission.SubmissionID,
		"service", submission.MainService,
		"has_attachment", submission.Attachment != nil,
	)

	result := serviceInstance.dispatchMessages(ctx, adminMessage, receiptMessage)
	if result.Err != nil {
		serviceInstance.logger.Error(
			"lead_dispatch_failed",
			"submission_id", submission.SubmissionID,
			"outcome", result.Outcome.String(),
			"error", result.Err,
		)
		// Callers get one opaque failure; the admin/receipt distinction
		// stays in the logs for manual follow-up.
		return result.Err
	}

	serviceInstance.logger.Info("lead_dispatch_completed", "submission_id", submission.SubmissionID)
	return nil
}

// dispatchMessages sends the admin notification first, then the receipt,
// strictly in sequence. A failed admin send stops the sequence so the logs
// never hide that the operator was not notified.
func (serviceInstance *leadServiceImpl) dispatchMessages(ctx context.Context, adminMessage, receiptMessage model.OutboundMessage) DispatchResult {
	if sendError := serviceInstance.sendOne(ctx, adminMessage); sendError != nil {
		return DispatchResult{Outcome: DispatchFailedAtAdmin, Err: sendError}
	}
	if sendError := serviceInstance.sendOne(ctx, receiptMessage); sendError != nil {
		return DispatchResult{Outcome: DispatchFailedAtReceipt, Err: sendError}
	}
	return DispatchResult{Outcome: DispatchSent}
}

func (serviceInstance *leadServiceImpl) sendOne(ctx context.Context, message model.OutboundMessage) error {
	return serviceInstance.sender.SendEmail(ctx, message.Recipient, message.Subject, message.HTMLBody, message.Attachments)
}
