package model

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Multipart field names accepted by the intake endpoint.
const (
	FieldName        = "name"
	FieldEmail       = "email"
	FieldMainService = "mainService"
	FieldSubService  = "subService"

	FieldProjectBrief       = "project_brief"
	FieldProjectBriefLegacy = "brief"
	FieldBusinessType       = "business_type"
	FieldIndustry           = "industry"
	FieldEstimatedBudget    = "estimated_budget"
	FieldOngoingMaintenance = "ongoing_maintenance"
	FieldHiringLikelihood   = "hiring_likelihood"
)

// ErrMissingRequiredFields is returned when any required intake field is
// absent or blank. The message doubles as the user-facing error body.
var ErrMissingRequiredFields = errors.New("Missing required fields")

// ErrInvalidAttachmentType is returned for uploads outside the PDF/Word
// allow-list. The message doubles as the user-facing error body.
var ErrInvalidAttachmentType = errors.New("Invalid file type. Only PDF or Word files allowed.")

// allowedAttachmentTypes is the fixed, case-sensitive media type
// allow-list for uploaded files.
var allowedAttachmentTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

// optionalFieldNames lists the fields copied through verbatim when present.
// FieldProjectBriefLegacy is folded into FieldProjectBrief during extraction.
var optionalFieldNames = []string{
	FieldProjectBrief,
	FieldBusinessType,
	FieldIndustry,
	FieldEstimatedBudget,
	FieldOngoingMaintenance,
	FieldHiringLikelihood,
}

// Attachment is one uploaded file forwarded with the notification emails.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Submission is the validated representation of one intake request. It is
// constructed only by ExtractSubmission; callers never see a partially
// validated instance.
type Submission struct {
	SubmissionID string

	Name        string
	Email       string
	MainService string
	SubService  string

	// Optional holds recognized optional fields that were actually
	// submitted. Absent keys stay absent so rendering can choose wording.
	Optional map[string]string

	Attachment *Attachment
}

// OutboundMessage is one email ready for dispatch through the mail channel.
type OutboundMessage struct {
	Recipient   string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// ExtractSubmission normalizes the multipart field bag into a Submission.
// Repeated fields collapse to their first value. Required fields must be
// non-empty after trimming; otherwise ErrMissingRequiredFields is returned
// and no further work happens.
func ExtractSubmission(rawFields map[string][]string) (Submission, error) {
	submission := Submission{
		SubmissionID: uuid.New().String(),
		Name:         strings.TrimSpace(firstValue(rawFields, FieldName)),
		Email:        strings.TrimSpace(firstValue(rawFields, FieldEmail)),
		MainService:  strings.TrimSpace(firstValue(rawFields, FieldMainService)),
		SubService:   strings.TrimSpace(firstValue(rawFields, FieldSubService)),
	}
	if submission.Name == "" || submission.Email == "" || submission.MainService == "" || submission.SubService == "" {
		return Submission{}, ErrMissingRequiredFields
	}

	optionalValues := make(map[string]string)
	for _, fieldName := range optionalFieldNames {
		if _, present := rawFields[fieldName]; present {
			optionalValues[fieldName] = firstValue(rawFields, fieldName)
		}
	}
	if _, present := optionalValues[FieldProjectBrief]; !present {
		if _, legacyPresent := rawFields[FieldProjectBriefLegacy]; legacyPresent {
			optionalValues[FieldProjectBrief] = firstValue(rawFields, FieldProjectBriefLegacy)
		}
	}
	submission.Optional = optionalValues

	return submission, nil
}

// ValidateAttachmentType checks a declared media type against the
// allow-list. Pure check: runs before any file bytes are read.
func ValidateAttachmentType(mediaType string) error {
	if _, allowed := allowedAttachmentTypes[mediaType]; !allowed {
		return ErrInvalidAttachmentType
	}
	return nil
}

// NewAttachment copies the payload so the attachment owns its bytes.
func NewAttachment(filename, contentType string, data []byte) Attachment {
	return Attachment{
		Filename:    strings.TrimSpace(filename),
		ContentType: strings.TrimSpace(contentType),
		Data:        append([]byte(nil), data...),
	}
}

func firstValue(rawFields map[string][]string, fieldName string) string {
	values := rawFields[fieldName]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
