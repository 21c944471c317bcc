package model

import (
	"testing"
	"time"
)

func TestStatusIsValid(t *testing.T) {
	valid := []Status{
		StatusNoActivity, StatusNeedsBDR, StatusReceivedRSVP, StatusShowedUpToEvent,
		StatusPostEvent1, StatusPostEvent2, StatusPostEvent3,
		StatusReceivedAgreement, StatusSignedAgreement,
	}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("Status(%q).IsValid() = false, want true", s)
		}
	}
	for _, s := range []Status{"", "open", "no activity"} {
		if s.IsValid() {
			t.Errorf("Status(%q).IsValid() = true, want false", s)
		}
	}
}

func TestNodeTypeHelpers(t *testing.T) {
	for _, tc := range []struct {
		typ      NodeType
		send     bool
		terminal bool
		channel  Channel
	}{
		{NodeEmailSend, true, false, ChannelEmail},
		{NodeSMSSend, true, false, ChannelSMS},
		{NodeVoicemailDrop, true, false, ChannelVoicemail},
		{NodeWait, false, false, ""},
		{NodeDecision, false, false, ""},
		{NodeGoal, false, true, ""},
		{NodeExit, false, true, ""},
	} {
		if got := tc.typ.IsSend(); got != tc.send {
			t.Errorf("%s.IsSend() = %v, want %v", tc.typ, got, tc.send)
		}
		if got := tc.typ.IsTerminal(); got != tc.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tc.typ, got, tc.terminal)
		}
		if got := tc.typ.Channel(); got != tc.channel {
			t.Errorf("%s.Channel() = %q, want %q", tc.typ, got, tc.channel)
		}
	}
}

func TestConditionIsDefault(t *testing.T) {
	var nilCond *Condition
	if !nilCond.IsDefault() {
		t.Error("nil condition should be default")
	}
	if !(&Condition{}).IsDefault() {
		t.Error("empty condition should be default")
	}
	if (&Condition{After: "PT10M"}).IsDefault() {
		t.Error("after condition should not be default")
	}
	if (&Condition{Label: "A"}).IsDefault() {
		t.Error("label condition should not be default")
	}
}

func TestValidateContact(t *testing.T) {
	good := &Contact{Name: "Jamie Rivera", Status: StatusNoActivity}
	if err := ValidateContact(good); err != nil {
		t.Errorf("valid contact rejected: %v", err)
	}

	bad := &Contact{Status: Status("bogus")}
	err := ValidateContact(bad)
	if err == nil {
		t.Fatal("expected validation error")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(ve.Errors) != 2 {
		t.Errorf("expected 2 field errors, got %d: %v", len(ve.Errors), ve)
	}
}

func TestValidateCampaign(t *testing.T) {
	good := &Campaign{
		Name: "Spring Summit", OwnerName: "Dana Cole", OwnerEmail: "dana@example.com",
		EventType: "dinner", EventDate: time.Now(),
	}
	if err := ValidateCampaign(good); err != nil {
		t.Errorf("valid campaign rejected: %v", err)
	}
	if err := ValidateCampaign(&Campaign{}); err == nil {
		t.Error("empty campaign should fail validation")
	}
}

func TestContactMergeFields(t *testing.T) {
	ct := &Contact{Name: "Jamie Rivera", Email: "jamie@example.com", Status: StatusNoActivity}
	fields := ct.MergeFields()
	if fields["first_name"] != "Jamie" || fields["last_name"] != "Rivera" {
		t.Errorf("name split = %q / %q", fields["first_name"], fields["last_name"])
	}
	single := &Contact{Name: "Cher"}
	if f := single.MergeFields(); f["first_name"] != "Cher" || f["last_name"] != "" {
		t.Errorf("single name split = %q / %q", f["first_name"], f["last_name"])
	}
}
