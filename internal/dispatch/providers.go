package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"net/url"
	"strings"
)

// --- Twilio (SMS, form-encoded) ---

type twilioProvider struct {
	cfg    TwilioConfig
	client *http.Client
}

func (p *twilioProvider) Name() string { return "twilio" }

func (p *twilioProvider) Configured() bool {
	return p.cfg.AccountSID != "" && p.cfg.AuthToken != "" &&
		(p.cfg.FromNumber != "" || p.cfg.MessagingServiceSID != "")
}

func (p *twilioProvider) Do(ctx context.Context, dest string, content Content, _ ContactRef) (Result, error) {
	form := url.Values{}
	form.Set("To", dest)
	form.Set("Body", content.Body)
	if p.cfg.MessagingServiceSID != "" {
		form.Set("MessagingServiceSid", p.cfg.MessagingServiceSID)
	} else {
		form.Set("From", p.cfg.FromNumber)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("twilio request: %w", err)
	}
	req.SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("twilio send: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("twilio send: HTTP %d: %s", resp.StatusCode, body)
	}

	var out struct {
		SID string `json:"sid"`
	}
	_ = json.Unmarshal(body, &out)
	return Result{Delivered: true, ProviderMsgID: out.SID, Raw: string(body)}, nil
}

// --- Bonzo (SMS, JSON) ---

type bonzoProvider struct {
	cfg    BonzoConfig
	client *http.Client
}

func (p *bonzoProvider) Name() string { return "bonzo" }

func (p *bonzoProvider) Configured() bool {
	return p.cfg.BaseURL != "" && p.cfg.APIKey != ""
}

func (p *bonzoProvider) Do(ctx context.Context, dest string, content Content, _ ContactRef) (Result, error) {
	// Bonzo's webhook endpoint expects `message`; `text` is included for
	// older deployments that still read it.
	payload := map[string]any{
		"to":      dest,
		"message": content.Body,
		"text":    content.Body,
	}
	if p.cfg.FromNumber != "" {
		payload["from"] = p.cfg.FromNumber
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("bonzo payload: %w", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + p.cfg.SendPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(data)))
	if err != nil {
		return Result{}, fmt.Errorf("bonzo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.cfg.AuthScheme != "" {
		req.Header.Set(p.cfg.AuthHeader, p.cfg.AuthScheme+" "+p.cfg.APIKey)
	} else {
		req.Header.Set(p.cfg.AuthHeader, p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("bonzo send: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("bonzo send: HTTP %d: %s", resp.StatusCode, body)
	}

	var out struct {
		ID  string `json:"id"`
		SID string `json:"sid"`
	}
	_ = json.Unmarshal(body, &out)
	msgID := out.ID
	if msgID == "" {
		msgID = out.SID
	}
	return Result{Delivered: true, ProviderMsgID: msgID, Raw: string(body)}, nil
}

// --- Drop Cowboy (voicemail drop, JSON) ---

type dropCowboyProvider struct {
	cfg    DropCowboyConfig
	client *http.Client
}

func (p *dropCowboyProvider) Name() string { return "dropcowboy" }

func (p *dropCowboyProvider) Configured() bool {
	return p.cfg.BearerToken != "" || (p.cfg.APIKey != "" && p.cfg.APISecret != "")
}

func (p *dropCowboyProvider) endpoint() string {
	if p.cfg.APIURL != "" {
		return p.cfg.APIURL
	}
	return strings.TrimRight(p.cfg.BaseURL, "/") + "/voicemail"
}

func (p *dropCowboyProvider) Do(ctx context.Context, dest string, content Content, ref ContactRef) (Result, error) {
	payload := map[string]any{
		"to":        dest,
		"audio_url": content.AudioURL,
	}
	callerID := ref.CallerID
	if callerID == "" {
		callerID = NormalizePhone10(p.cfg.FromNumber)
	}
	if callerID != "" {
		payload["caller_id"] = callerID
	}
	if ref.CampaignID != "" {
		payload["title"] = ref.CampaignID
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("dropcowboy payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), strings.NewReader(string(data)))
	if err != nil {
		return Result{}, fmt.Errorf("dropcowboy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.BearerToken)
	} else {
		req.Header.Set("X-API-KEY", p.cfg.APIKey)
		req.Header.Set("X-API-SECRET", p.cfg.APISecret)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("dropcowboy send: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("dropcowboy send: HTTP %d: %s", resp.StatusCode, body)
	}

	var out struct {
		ID        string `json:"id"`
		MessageID string `json:"message_id"`
		SessionID string `json:"session_id"`
	}
	_ = json.Unmarshal(body, &out)
	msgID := out.ID
	if msgID == "" {
		msgID = out.MessageID
	}
	if msgID == "" {
		msgID = out.SessionID
	}
	return Result{Delivered: true, ProviderMsgID: msgID, Raw: string(body)}, nil
}

// --- SMTP (email) ---

type smtpProvider struct {
	cfg SMTPConfig
}

func (p *smtpProvider) Name() string { return "smtp" }

func (p *smtpProvider) Configured() bool {
	return p.cfg.Host != "" && p.cfg.Port != 0 && p.cfg.Username != "" && p.cfg.Password != ""
}

func (p *smtpProvider) Do(ctx context.Context, dest string, content Content, _ ContactRef) (Result, error) {
	from := p.cfg.From
	if from == "" {
		from = p.cfg.Username
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", dest)
	if content.Subject != "" {
		fmt.Fprintf(&msg, "Subject: %s\r\n", content.Subject)
	}
	msg.WriteString("\r\n")
	msg.WriteString(content.Body)

	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)

	// net/smtp has no context support; run the send in a goroutine so the
	// dispatcher's per-call timeout still bounds the wait.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, from, []string{dest}, []byte(msg.String()))
	}()
	select {
	case err := <-done:
		if err != nil {
			return Result{}, fmt.Errorf("smtp send: %w", err)
		}
		return Result{Delivered: true}, nil
	case <-ctx.Done():
		return Result{}, fmt.Errorf("smtp send: %w", ctx.Err())
	}
}
