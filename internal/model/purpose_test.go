package model

import (
	"reflect"
	"testing"
)

func TestParsePurposeDetailsMissingFields(t *testing.T) {
	full := map[string]string{
		"referenceName": "Ann", "referencePhoneNumber": "1",
		"trainingName": "Safety", "trainerNumber": "2", "departmentName": "Ops",
		"visitorDescription": "meeting",
		"companyName":        "Acme", "clientMobileNumber": "3",
		"interviewPosition": "SRE", "interviewerName": "Bo", "interviewerPhone": "4", "interviewType": "onsite",
	}

	for _, purpose := range []Purpose{PurposeOnboarding, PurposeAssignment, PurposeInterview, PurposeTraining, PurposeVisitor, PurposeClient} {
		t.Run(string(purpose), func(t *testing.T) {
			d, missing, err := ParsePurposeDetails(purpose, full)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(missing) != 0 {
				t.Fatalf("expected no missing fields, got %v", missing)
			}
			if d.Purpose() != purpose {
				t.Fatalf("variant purpose %s, want %s", d.Purpose(), purpose)
			}
			if len(d.Fields()) != len(purpose.RequiredFields()) {
				t.Fatalf("variant carries %d fields, want exactly %d", len(d.Fields()), len(purpose.RequiredFields()))
			}

			_, missing, _ = ParsePurposeDetails(purpose, map[string]string{})
			if !reflect.DeepEqual(missing, purpose.RequiredFields()) {
				t.Fatalf("missing=%v, want %v", missing, purpose.RequiredFields())
			}
		})
	}
}

func TestParsePurposeDetailsBlankCountsAsMissing(t *testing.T) {
	_, missing, err := ParsePurposeDetails(PurposeInterview, map[string]string{
		"interviewPosition": "SRE",
		"interviewerName":   "Bo",
		"interviewerPhone":  "   ",
		"interviewType":     "remote",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(missing, []string{"interviewerPhone"}) {
		t.Fatalf("missing=%v", missing)
	}
}

func TestParsePurposeDetailsUnknownPurpose(t *testing.T) {
	if _, _, err := ParsePurposeDetails("tourism", nil); err == nil {
		t.Fatal("expected error for unknown purpose")
	}
}

func TestDecodePurposeDetailsDropsForeignFields(t *testing.T) {
	d, err := DecodePurposeDetails(PurposeVisitor, []byte(`{"visitorDescription":"meeting","companyName":"Acme"}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := d.(VisitorDetails); got.VisitorDescription != "meeting" {
		t.Fatalf("unexpected details %+v", got)
	}
	if _, ok := d.Fields()["companyName"]; ok {
		t.Fatal("foreign field leaked into visitor details")
	}
}
