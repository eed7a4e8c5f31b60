package service

import (
	"fmt"
	"strings"

	"github.com/growpixel/leadmail/internal/model"
)

const missingOptionalPlaceholder = "N/A"

// ComposeMessages renders the admin notification and the submitter receipt
// from one validated Submission. Pure transform: no I/O, no mutation of the
// Submission. Field values are interpolated raw into the HTML; the intake
// form is the trust boundary and sanitization is intentionally out of scope.
func ComposeMessages(submission model.Submission, adminEmail string) (model.OutboundMessage, model.OutboundMessage) {
	servicePath := fmt.Sprintf("%s → %s", submission.MainService, submission.SubService)
	sharedFragment := buildLeadFragment(submission, servicePath)

	adminMessage := model.OutboundMessage{
		Recipient: adminEmail,
		Subject:   fmt.Sprintf("New Project Submission from %s (%s)", submission.Name, servicePath),
		HTMLBody:  sharedFragment,
	}

	var receiptBody strings.Builder
	receiptBody.WriteString(fmt.Sprintf("<p>Hi %s,</p>", submission.Name))
	receiptBody.WriteString("<p>Thanks for reaching out! Here is a copy of your submission. We will get back to you shortly.</p>")
	receiptBody.WriteString(sharedFragment)

	receiptMessage := model.OutboundMessage{
		Recipient: submission.Email,
		Subject:   "Copy of your project submission",
		HTMLBody:  receiptBody.String(),
	}

	if submission.Attachment != nil {
		// Each message owns its own copy so both stay independently
		// sendable even if the transport consumes the buffer.
		adminMessage.Attachments = []model.Attachment{copyAttachment(*submission.Attachment)}
		receiptMessage.Attachments = []model.Attachment{copyAttachment(*submission.Attachment)}
	}

	return adminMessage, receiptMessage
}

func buildLeadFragment(submission model.Submission, servicePath string) string {
	var fragment strings.Builder
	fragment.WriteString("<h3>New project submission</h3>")
	fragment.WriteString(fmt.Sprintf("<p><strong>Name:</strong> %s</p>", submission.Name))
	fragment.WriteString(fmt.Sprintf("<p><strong>Email:</strong> %s</p>", submission.Email))
	fragment.WriteString(fmt.Sprintf("<p><strong>Service:</strong> %s</p>", servicePath))
	fragment.WriteString(fmt.Sprintf("<p><strong>Business Type:</strong> %s</p>", optionalValue(submission, model.FieldBusinessType)))
	fragment.WriteString(fmt.Sprintf("<p><strong>Industry:</strong> %s</p>", optionalValue(submission, model.FieldIndustry)))
	fragment.WriteString(fmt.Sprintf("<p><strong>Estimated Budget:</strong> %s</p>", optionalValue(submission, model.FieldEstimatedBudget)))
	fragment.WriteString(fmt.Sprintf("<p><strong>Ongoing Maintenance:</strong> %s</p>", optionalValue(submission, model.FieldOngoingMaintenance)))
	fragment.WriteString(fmt.Sprintf("<p><strong>Hiring Likelihood:</strong> %s</p>", optionalValue(submission, model.FieldHiringLikelihood)))
	fragment.WriteString(fmt.Sprintf("<p><strong>Project Brief:</strong><br>%s</p>", preserveLineBreaks(optionalValue(submission, model.FieldProjectBrief))))
	return fragment.String()
}

func optionalValue(submission model.Submission, fieldName string) string {
	value, present := submission.Optional[fieldName]
	if !present || strings.TrimSpace(value) == "" {
		return missingOptionalPlaceholder
	}
	return value
}

func preserveLineBreaks(value string) string {
	normalized := strings.ReplaceAll(value, "\r\n", "\n")
	return strings.ReplaceAll(normalized, "\n", "<br>")
}

func copyAttachment(attachment model.Attachment) model.Attachment {
	return model.NewAttachment(attachment.Filename, attachment.ContentType, attachment.Data)
}
