// Package dispatch sends outbound content through ordered chains of channel
// providers, falling back provider to provider and finally to a synthetic
// mock result so callers always receive a value.
package dispatch

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/groblegark/funnel/internal/model"
)

// DefaultTimeout bounds each individual provider call. A timeout counts as
// a provider failure and advances the chain.
const DefaultTimeout = 10 * time.Second

// Content is the resolved outbound payload after merge-tag substitution.
type Content struct {
	Subject  string
	Body     string
	AudioURL string
}

// ContactRef carries the identifiers a provider may attach to its payload.
type ContactRef struct {
	ContactID  string
	CampaignID string
	CallerID   string
}

// Result is the outcome of a dispatch attempt. It is transient: the caller
// folds it into a ledger message rather than persisting it directly.
type Result struct {
	Delivered     bool
	Provider      string
	ProviderMsgID string
	Raw           string
}

// Provider is one deliverer in a channel chain. Configured reports whether
// credentials are present; an unconfigured provider is skipped without a
// network call. Do returns an error to signal "try the next provider".
type Provider interface {
	Name() string
	Configured() bool
	Do(ctx context.Context, dest string, content Content, ref ContactRef) (Result, error)
}

// Dispatcher tries providers in a configured order per channel.
type Dispatcher struct {
	chains  map[model.Channel][]Provider
	timeout time.Duration
	logger  *slog.Logger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout overrides the per-provider call timeout.
func WithTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.timeout = d }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(dp *Dispatcher) { dp.logger = l }
}

// New builds a Dispatcher from the provider chain configuration.
func New(cfg *ProviderChainConfig, opts ...Option) *Dispatcher {
	httpClient := &http.Client{}

	registry := map[string]Provider{
		"twilio":     &twilioProvider{cfg: cfg.Twilio, client: httpClient},
		"bonzo":      &bonzoProvider{cfg: cfg.Bonzo, client: httpClient},
		"dropcowboy": &dropCowboyProvider{cfg: cfg.DropCowboy, client: httpClient},
		"smtp":       &smtpProvider{cfg: cfg.SMTP},
	}

	chains := map[model.Channel][]Provider{
		model.ChannelSMS:       resolveChain(cfg.SMS.Chain, registry),
		model.ChannelEmail:     resolveChain(cfg.Email.Chain, registry),
		model.ChannelVoicemail: resolveChain(cfg.Voicemail.Chain, registry),
	}

	d := &Dispatcher{
		chains:  chains,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func resolveChain(names []string, registry map[string]Provider) []Provider {
	var chain []Provider
	for _, name := range names {
		if p, ok := registry[name]; ok {
			chain = append(chain, p)
		}
	}
	return chain
}

// Send delivers content to the destination over the given channel. It never
// returns an error: provider failures fall through the chain and exhaustion
// yields {Delivered: false, Provider: "mock"}.
func (d *Dispatcher) Send(ctx context.Context, channel model.Channel, destination string, content Content, ref ContactRef) Result {
	dest := destination
	switch channel {
	case model.ChannelSMS:
		dest = NormalizeE164(dest)
	case model.ChannelVoicemail:
		dest = NormalizePhone10(dest)
		ref.CallerID = NormalizePhone10(ref.CallerID)
		// Voicemail requires a publicly reachable audio URL; data: URIs
		// cannot be fetched by the provider.
		if content.AudioURL == "" || strings.HasPrefix(content.AudioURL, "data:") {
			return Result{Delivered: false, Provider: "mock", Raw: "audio_url required"}
		}
	}
	if dest == "" {
		return Result{Delivered: false, Provider: "mock", Raw: "destination required"}
	}

	for _, p := range d.chains[channel] {
		if !p.Configured() {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		res, err := p.Do(callCtx, dest, content, ref)
		cancel()
		if err != nil {
			d.logger.Warn("provider send failed, trying next",
				"provider", p.Name(), "channel", channel, "err", err)
			continue
		}
		res.Provider = p.Name()
		return res
	}

	return Result{Delivered: false, Provider: "mock"}
}
