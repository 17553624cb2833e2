package oserver

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Seann-Moser/oauth2core/utils"
)

type Config struct {
	TokenType            string   `yaml:"token_type"`
	TokenLength          int      `yaml:"token_length"`
	ImplicitExpiresIn    Duration `yaml:"implicit_expires_in"`
	AccessTokenExpiresIn Duration `yaml:"access_token_expires_in"`
	AuthorizationCodeTTL Duration `yaml:"authorization_code_ttl"`
	DisableRefreshTokens bool     `yaml:"disable_refresh_tokens"`
	RequirePKCE          bool     `yaml:"require_pkce"`
	// RevocationTokenTypes lists the token_type_hint values the revocation
	// endpoint accepts. Nil accepts both; an empty list accepts neither.
	RevocationTokenTypes []string `yaml:"revocation_token_types"`
	Realm                string   `yaml:"realm"`
}

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dur
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Seconds is the duration as a whole number of seconds, the unit of expires_in.
func (d Duration) Seconds() int64 {
	return int64(d.Duration / time.Second)
}

func DefaultConfig() Config {
	return Config{
		TokenType:            "Bearer",
		TokenLength:          utils.DefaultTokenLength,
		ImplicitExpiresIn:    Duration{time.Hour},
		AccessTokenExpiresIn: Duration{time.Hour},
		AuthorizationCodeTTL: Duration{10 * time.Minute},
		RevocationTokenTypes: []string{"access_token", "refresh_token"},
		Realm:                "oauth2core",
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig, then applies
// OAUTH2CORE_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	cfg := DefaultConfig()
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.TokenType == "" {
		c.TokenType = def.TokenType
	}
	if c.TokenLength <= 0 {
		c.TokenLength = def.TokenLength
	}
	if c.ImplicitExpiresIn.Duration <= 0 {
		c.ImplicitExpiresIn = def.ImplicitExpiresIn
	}
	if c.AccessTokenExpiresIn.Duration <= 0 {
		c.AccessTokenExpiresIn = def.AccessTokenExpiresIn
	}
	if c.AuthorizationCodeTTL.Duration <= 0 {
		c.AuthorizationCodeTTL = def.AuthorizationCodeTTL
	}
	if c.RevocationTokenTypes == nil {
		c.RevocationTokenTypes = def.RevocationTokenTypes
	}
	if c.Realm == "" {
		c.Realm = def.Realm
	}
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("OAUTH2CORE_TOKEN_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OAUTH2CORE_TOKEN_LENGTH: %w", err)
		}
		c.TokenLength = n
	}
	durations := map[string]*Duration{
		"OAUTH2CORE_IMPLICIT_EXPIRES_IN":     &c.ImplicitExpiresIn,
		"OAUTH2CORE_ACCESS_TOKEN_EXPIRES_IN": &c.AccessTokenExpiresIn,
		"OAUTH2CORE_AUTHORIZATION_CODE_TTL":  &c.AuthorizationCodeTTL,
	}
	for name, d := range durations {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		dur, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		d.Duration = dur
	}
	bools := map[string]*bool{
		"OAUTH2CORE_DISABLE_REFRESH_TOKENS": &c.DisableRefreshTokens,
		"OAUTH2CORE_REQUIRE_PKCE":           &c.RequirePKCE,
	}
	for name, b := range bools {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*b = parsed
	}
	if v := os.Getenv("OAUTH2CORE_REVOCATION_TOKEN_TYPES"); v != "" {
		c.RevocationTokenTypes = strings.Split(v, ",")
	}
	if v := os.Getenv("OAUTH2CORE_REALM"); v != "" {
		c.Realm = v
	}
	return nil
}
