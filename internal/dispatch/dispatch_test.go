package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/groblegark/funnel/internal/model"
)

func TestNormalizeE164(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"5551234567", "+15551234567"},
		{"15551234567", "+15551234567"},
		{"+15551234567", "+15551234567"},
		{"(555) 123-4567", "+15551234567"},
		{"1 555 123 4567", "+15551234567"},
		{"12345", "12345"}, // unrecognized shape passes through
		{"", ""},
	} {
		if got := NormalizeE164(tc.in); got != tc.want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePhone10(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"+15551234567", "5551234567"},
		{"15551234567", "5551234567"},
		{"5551234567", "5551234567"},
		{"555-123-4567", "5551234567"},
		{"123", "123"},
	} {
		if got := NormalizePhone10(tc.in); got != tc.want {
			t.Errorf("NormalizePhone10(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSendUnconfiguredFallsBackToMock(t *testing.T) {
	d := New(&ProviderChainConfig{})
	res := d.Send(context.Background(), model.ChannelSMS, "5551234567", Content{Body: "hi"}, ContactRef{})
	if res.Delivered {
		t.Error("expected delivered=false")
	}
	if res.Provider != "mock" {
		t.Errorf("provider = %q, want mock", res.Provider)
	}
}

func TestSendVoicemailRejectsDataURI(t *testing.T) {
	d := New(&ProviderChainConfig{})
	res := d.Send(context.Background(), model.ChannelVoicemail, "5551234567",
		Content{AudioURL: "data:audio/mp3;base64,AAAA"}, ContactRef{})
	if res.Delivered || res.Provider != "mock" {
		t.Errorf("expected mock failure, got %+v", res)
	}
	res = d.Send(context.Background(), model.ChannelVoicemail, "5551234567", Content{}, ContactRef{})
	if res.Delivered || res.Provider != "mock" {
		t.Errorf("expected mock failure for missing audio, got %+v", res)
	}
}

func TestSendMissingDestination(t *testing.T) {
	d := New(&ProviderChainConfig{})
	res := d.Send(context.Background(), model.ChannelSMS, "", Content{Body: "hi"}, ContactRef{})
	if res.Delivered || res.Provider != "mock" {
		t.Errorf("expected mock failure, got %+v", res)
	}
}

func TestSendBonzoSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "bz-123"})
	}))
	defer srv.Close()

	cfg := &ProviderChainConfig{
		SMS:   ChainSpec{Chain: []string{"bonzo"}},
		Bonzo: BonzoConfig{BaseURL: srv.URL, APIKey: "secret", FromNumber: "5550001111"},
	}
	cfg.applyDefaults()

	d := New(cfg)
	res := d.Send(context.Background(), model.ChannelSMS, "5551234567", Content{Body: "hello"}, ContactRef{})
	if !res.Delivered {
		t.Fatalf("expected delivery, got %+v", res)
	}
	if res.Provider != "bonzo" || res.ProviderMsgID != "bz-123" {
		t.Errorf("result = %+v", res)
	}
	if gotPath != "/messages/send" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody["to"] != "+15551234567" {
		t.Errorf("to = %v, want normalized E.164", gotBody["to"])
	}
}

func TestSendFallsThroughOnProviderError(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"sid": "SMxyz"})
	}))
	defer working.Close()

	cfg := &ProviderChainConfig{
		SMS:    ChainSpec{Chain: []string{"bonzo", "twilio"}},
		Bonzo:  BonzoConfig{BaseURL: failing.URL, APIKey: "k"},
		Twilio: TwilioConfig{AccountSID: "AC1", AuthToken: "tok", FromNumber: "+15550001111", BaseURL: working.URL},
	}
	cfg.applyDefaults()

	d := New(cfg)
	res := d.Send(context.Background(), model.ChannelSMS, "5551234567", Content{Body: "hello"}, ContactRef{})
	if !res.Delivered || res.Provider != "twilio" || res.ProviderMsgID != "SMxyz" {
		t.Errorf("result = %+v, want twilio delivery", res)
	}
}

func TestSendAllProvidersFailYieldsMock(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer failing.Close()

	cfg := &ProviderChainConfig{
		SMS:   ChainSpec{Chain: []string{"bonzo"}},
		Bonzo: BonzoConfig{BaseURL: failing.URL, APIKey: "bad"},
	}
	cfg.applyDefaults()

	d := New(cfg)
	res := d.Send(context.Background(), model.ChannelSMS, "5551234567", Content{Body: "x"}, ContactRef{})
	if res.Delivered || res.Provider != "mock" {
		t.Errorf("result = %+v, want mock", res)
	}
}

func TestSendTimeoutAdvancesChain(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	cfg := &ProviderChainConfig{
		SMS:   ChainSpec{Chain: []string{"bonzo"}},
		Bonzo: BonzoConfig{BaseURL: slow.URL, APIKey: "k"},
	}
	cfg.applyDefaults()

	d := New(cfg, WithTimeout(50*time.Millisecond))
	start := time.Now()
	res := d.Send(context.Background(), model.ChannelSMS, "5551234567", Content{Body: "x"}, ContactRef{})
	if res.Provider != "mock" {
		t.Errorf("result = %+v, want mock after timeout", res)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout not enforced")
	}
}

func TestVoicemailDestinationReducedTo10Digits(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "vm-1"})
	}))
	defer srv.Close()

	cfg := &ProviderChainConfig{
		Voicemail:  ChainSpec{Chain: []string{"dropcowboy"}},
		DropCowboy: DropCowboyConfig{APIURL: srv.URL, BearerToken: "tok"},
	}
	cfg.applyDefaults()

	d := New(cfg)
	res := d.Send(context.Background(), model.ChannelVoicemail, "+15551234567",
		Content{AudioURL: "https://cdn.example.com/drop.mp3"}, ContactRef{CampaignID: "cp-1"})
	if !res.Delivered || res.Provider != "dropcowboy" {
		t.Fatalf("result = %+v", res)
	}
	if gotBody["to"] != "5551234567" {
		t.Errorf("to = %v, want bare 10 digits", gotBody["to"])
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := &ProviderChainConfig{}
	cfg.applyDefaults()
	if cfg.Bonzo.SendPath != "/messages/send" || cfg.Bonzo.AuthHeader != "Authorization" {
		t.Errorf("bonzo defaults = %+v", cfg.Bonzo)
	}
	if len(cfg.SMS.Chain) == 0 || cfg.SMS.Chain[0] != "bonzo" {
		t.Errorf("sms chain = %v", cfg.SMS.Chain)
	}
}
