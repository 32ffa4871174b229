package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Purpose string

const (
	PurposeOnboarding Purpose = "onboarding"
	PurposeAssignment Purpose = "assignment"
	PurposeInterview  Purpose = "interview"
	PurposeTraining   Purpose = "training"
	PurposeVisitor    Purpose = "visitor"
	PurposeClient     Purpose = "client"
)

// purposeFields lists, in form order, the extra fields each purpose requires.
var purposeFields = map[Purpose][]string{
	PurposeOnboarding: {"referenceName", "referencePhoneNumber"},
	PurposeTraining:   {"trainingName", "trainerNumber", "departmentName"},
	PurposeAssignment: {"departmentName"},
	PurposeVisitor:    {"visitorDescription"},
	PurposeClient:     {"companyName", "clientMobileNumber"},
	PurposeInterview:  {"interviewPosition", "interviewerName", "interviewerPhone", "interviewType"},
}

func (p Purpose) Valid() bool {
	_, ok := purposeFields[p]
	return ok
}

// RequiredFields returns the purpose-conditioned fields for p.
func (p Purpose) RequiredFields() []string {
	return append([]string(nil), purposeFields[p]...)
}

// AllPurposeFields returns every purpose-conditioned field name across purposes.
func AllPurposeFields() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range []Purpose{PurposeOnboarding, PurposeAssignment, PurposeInterview, PurposeTraining, PurposeVisitor, PurposeClient} {
		for _, f := range purposeFields[p] {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// PurposeDetails is the purpose-specific part of a request. Each variant
// carries only the fields its purpose requires.
type PurposeDetails interface {
	Purpose() Purpose
	Fields() map[string]string
}

type OnboardingDetails struct {
	ReferenceName        string `json:"referenceName"`
	ReferencePhoneNumber string `json:"referencePhoneNumber"`
}

func (OnboardingDetails) Purpose() Purpose { return PurposeOnboarding }
func (d OnboardingDetails) Fields() map[string]string {
	return map[string]string{"referenceName": d.ReferenceName, "referencePhoneNumber": d.ReferencePhoneNumber}
}

type TrainingDetails struct {
	TrainingName   string `json:"trainingName"`
	TrainerNumber  string `json:"trainerNumber"`
	DepartmentName string `json:"departmentName"`
}

func (TrainingDetails) Purpose() Purpose { return PurposeTraining }
func (d TrainingDetails) Fields() map[string]string {
	return map[string]string{"trainingName": d.TrainingName, "trainerNumber": d.TrainerNumber, "departmentName": d.DepartmentName}
}

type AssignmentDetails struct {
	DepartmentName string `json:"departmentName"`
}

func (AssignmentDetails) Purpose() Purpose { return PurposeAssignment }
func (d AssignmentDetails) Fields() map[string]string {
	return map[string]string{"departmentName": d.DepartmentName}
}

type VisitorDetails struct {
	VisitorDescription string `json:"visitorDescription"`
}

func (VisitorDetails) Purpose() Purpose { return PurposeVisitor }
func (d VisitorDetails) Fields() map[string]string {
	return map[string]string{"visitorDescription": d.VisitorDescription}
}

type ClientDetails struct {
	CompanyName        string `json:"companyName"`
	ClientMobileNumber string `json:"clientMobileNumber"`
}

func (ClientDetails) Purpose() Purpose { return PurposeClient }
func (d ClientDetails) Fields() map[string]string {
	return map[string]string{"companyName": d.CompanyName, "clientMobileNumber": d.ClientMobileNumber}
}

type InterviewDetails struct {
	InterviewPosition string `json:"interviewPosition"`
	InterviewerName   string `json:"interviewerName"`
	InterviewerPhone  string `json:"interviewerPhone"`
	InterviewType     string `json:"interviewType"`
}

func (InterviewDetails) Purpose() Purpose { return PurposeInterview }
func (d InterviewDetails) Fields() map[string]string {
	return map[string]string{
		"interviewPosition": d.InterviewPosition,
		"interviewerName":   d.InterviewerName,
		"interviewerPhone":  d.InterviewerPhone,
		"interviewType":     d.InterviewType,
	}
}

// ParsePurposeDetails builds the variant for purpose from a flat field map.
// missing lists required fields that are absent or blank, in form order.
// Fields that do not belong to the purpose are ignored.
func ParsePurposeDetails(purpose Purpose, fields map[string]string) (PurposeDetails, []string, error) {
	required, ok := purposeFields[purpose]
	if !ok {
		return nil, nil, fmt.Errorf("unknown purpose of access %q", purpose)
	}

	var missing []string
	get := func(name string) string {
		return strings.TrimSpace(fields[name])
	}
	for _, name := range required {
		if get(name) == "" {
			missing = append(missing, name)
		}
	}

	var d PurposeDetails
	switch purpose {
	case PurposeOnboarding:
		d = OnboardingDetails{ReferenceName: get("referenceName"), ReferencePhoneNumber: get("referencePhoneNumber")}
	case PurposeTraining:
		d = TrainingDetails{TrainingName: get("trainingName"), TrainerNumber: get("trainerNumber"), DepartmentName: get("departmentName")}
	case PurposeAssignment:
		d = AssignmentDetails{DepartmentName: get("departmentName")}
	case PurposeVisitor:
		d = VisitorDetails{VisitorDescription: get("visitorDescription")}
	case PurposeClient:
		d = ClientDetails{CompanyName: get("companyName"), ClientMobileNumber: get("clientMobileNumber")}
	case PurposeInterview:
		d = InterviewDetails{
			InterviewPosition: get("interviewPosition"),
			InterviewerName:   get("interviewerName"),
			InterviewerPhone:  get("interviewerPhone"),
			InterviewType:     get("interviewType"),
		}
	}
	return d, missing, nil
}

// DecodePurposeDetails restores a variant from its stored JSON form.
func DecodePurposeDetails(purpose Purpose, raw []byte) (PurposeDetails, error) {
	var fields map[string]string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("decode %s details: %w", purpose, err)
		}
	}
	d, _, err := ParsePurposeDetails(purpose, fields)
	return d, err
}
