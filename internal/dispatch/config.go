package dispatch

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ChainSpec names the ordered providers to try for one channel.
type ChainSpec struct {
	Chain []string `toml:"chain"`
}

// TwilioConfig holds Twilio REST credentials.
type TwilioConfig struct {
	AccountSID          string `toml:"account_sid"`
	AuthToken           string `toml:"auth_token"`
	FromNumber          string `toml:"from_number"`
	MessagingServiceSID string `toml:"messaging_service_sid"`
	BaseURL             string `toml:"base_url"` // override for tests
}

// BonzoConfig holds Bonzo webhook-style API settings.
type BonzoConfig struct {
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	FromNumber string `toml:"from_number"`
	SendPath   string `toml:"send_path"`    // default "/messages/send"
	AuthHeader string `toml:"auth_header"`  // default "Authorization"
	AuthScheme string `toml:"auth_scheme"`  // default "Bearer"
}

// DropCowboyConfig holds Drop Cowboy voicemail-drop API settings.
type DropCowboyConfig struct {
	APIURL      string `toml:"api_url"` // full endpoint; wins over BaseURL
	BaseURL     string `toml:"base_url"`
	APIKey      string `toml:"api_key"`
	APISecret   string `toml:"api_secret"`
	BearerToken string `toml:"bearer_token"`
	FromNumber  string `toml:"from_number"`
}

// SMTPConfig holds outbound email settings.
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

// ProviderChainConfig is the full dispatcher configuration, normally loaded
// from a TOML file. A channel with no chain (or a chain whose providers all
// lack credentials) degrades to the synthetic mock result.
type ProviderChainConfig struct {
	SMS       ChainSpec `toml:"sms"`
	Email     ChainSpec `toml:"email"`
	Voicemail ChainSpec `toml:"voicemail"`

	Twilio     TwilioConfig     `toml:"twilio"`
	Bonzo      BonzoConfig      `toml:"bonzo"`
	DropCowboy DropCowboyConfig `toml:"dropcowboy"`
	SMTP       SMTPConfig       `toml:"smtp"`
}

// LoadConfig reads a ProviderChainConfig from a TOML file.
func LoadConfig(path string) (*ProviderChainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider config: %w", err)
	}
	var cfg ProviderChainConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse provider config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *ProviderChainConfig) applyDefaults() {
	if c.Bonzo.SendPath == "" {
		c.Bonzo.SendPath = "/messages/send"
	}
	if c.Bonzo.AuthHeader == "" {
		c.Bonzo.AuthHeader = "Authorization"
	}
	if c.Bonzo.AuthScheme == "" {
		c.Bonzo.AuthScheme = "Bearer"
	}
	if c.DropCowboy.BaseURL == "" {
		c.DropCowboy.BaseURL = "https://api.dropcowboy.com/v1"
	}
	if c.Twilio.BaseURL == "" {
		c.Twilio.BaseURL = "https://api.twilio.com"
	}
	if len(c.SMS.Chain) == 0 {
		c.SMS.Chain = []string{"bonzo", "twilio"}
	}
	if len(c.Email.Chain) == 0 {
		c.Email.Chain = []string{"smtp"}
	}
	if len(c.Voicemail.Chain) == 0 {
		c.Voicemail.Chain = []string{"dropcowboy"}
	}
}
