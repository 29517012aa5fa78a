// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 == nil {
		t.Fatal("GetValidator() should not return nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

type scheduleInput struct {
	Frequency     string `json:"frequency" validate:"required,oneof=daily weekly monthly"`
	Time          string `json:"time" validate:"required,hhmm"`
	RetentionDays int    `json:"retentionDays" validate:"min=1,max=365"`
	Note          string `json:"note,omitempty" validate:"omitempty,max=10"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     scheduleInput
		wantField string
		wantTag   string
	}{
		{
			name:  "valid",
			input: scheduleInput{Frequency: "daily", Time: "02:00", RetentionDays: 30},
		},
		{
			name:      "hourly frequency rejected",
			input:     scheduleInput{Frequency: "hourly", Time: "02:00", RetentionDays: 30},
			wantField: "frequency",
			wantTag:   "oneof",
		},
		{
			name:      "bad clock time",
			input:     scheduleInput{Frequency: "daily", Time: "25:00", RetentionDays: 30},
			wantField: "time",
			wantTag:   "hhmm",
		},
		{
			name:      "retention zero",
			input:     scheduleInput{Frequency: "daily", Time: "02:00", RetentionDays: 0},
			wantField: "retentionDays",
			wantTag:   "min",
		},
		{
			name:      "retention over a year",
			input:     scheduleInput{Frequency: "daily", Time: "02:00", RetentionDays: 400},
			wantField: "retentionDays",
			wantTag:   "max",
		},
		{
			name:      "string too long",
			input:     scheduleInput{Frequency: "daily", Time: "02:00", RetentionDays: 1, Note: "far too long note"},
			wantField: "note",
			wantTag:   "max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error on %s", tt.wantField)
			}
			errs := err.Errors()
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %d: %v", len(errs), err)
			}
			if errs[0].Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", errs[0].Field(), tt.wantField)
			}
			if errs[0].Tag() != tt.wantTag {
				t.Errorf("Tag() = %q, want %q", errs[0].Tag(), tt.wantTag)
			}
		})
	}
}

func TestIsClockTime(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"00:00": true,
		"23:59": true,
		"02:00": true,
		"24:00": false,
		"2:00":  false,
		"02:60": false,
		"":      false,
		"ab:cd": false,
	}
	for in, want := range cases {
		if got := IsClockTime(in); got != want {
			t.Errorf("IsClockTime(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestToAPIError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		in := scheduleInput{Frequency: "daily", Time: "9am", RetentionDays: 1}
		apiErr := ValidateStruct(&in).ToAPIError()
		if apiErr.Code != "VALIDATION_ERROR" {
			t.Errorf("Code = %q", apiErr.Code)
		}
		if !strings.Contains(apiErr.Message, "HH:MM") {
			t.Errorf("Message = %q, want HH:MM hint", apiErr.Message)
		}
		if apiErr.Details["field"] != "time" {
			t.Errorf("Details[field] = %v", apiErr.Details["field"])
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		in := scheduleInput{}
		apiErr := ValidateStruct(&in).ToAPIError()
		fields, ok := apiErr.Details["fields"].([]map[string]interface{})
		if !ok {
			t.Fatalf("Details[fields] has type %T", apiErr.Details["fields"])
		}
		if len(fields) != 3 {
			t.Errorf("expected 3 field errors, got %d", len(fields))
		}
	})

	t.Run("empty", func(t *testing.T) {
		apiErr := (&RequestValidationError{}).ToAPIError()
		if apiErr.Message != "Validation failed" {
			t.Errorf("Message = %q", apiErr.Message)
		}
	})
}
