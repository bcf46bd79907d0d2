// Package config loads the process configuration from the environment.
//
// The configuration is read once at startup into an immutable Config value
// which is passed into each component's constructor. No component reads
// environment variables directly.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Verifier strategy names accepted by TOKEN_VERIFIER.
const (
	VerifierIntrospection = "introspection"
	VerifierJWT           = "jwt"
)

const (
	issuerEnvVar       = "OKTA_ISSUER"
	audienceEnvVar     = "OKTA_AUDIENCE"
	clientIDEnvVar     = "OKTA_CLIENT_ID"
	clientSecretEnvVar = "OKTA_CLIENT_SECRET"
)

// Config holds the full configuration surface for all three roles (client,
// resource server, validator). Values are fixed after New returns.
type Config struct {
	// Identity provider
	Issuer       string
	Audience     string
	ClientID     string
	ClientSecret string

	// Resource server
	ServerHost     string
	ServerPort     string
	ServerURL      string
	RequiredScopes []string
	VerifierKind   string

	// Downstream API reached via RFC 8693 token exchange
	ThirdPartyAPIURL   string
	ThirdPartyScope    string
	ThirdPartyAudience string

	// OAuth client login flow
	CallbackPort    int
	CallbackTimeout time.Duration

	// Outbound HTTP
	VerifySSL    bool
	CABundlePath string

	LogLevel string
}

// New builds a Config from the environment and validates it.
func New() (*Config, error) {
	host := GetEnv("MCP_SERVER_HOST", "localhost")
	port := GetEnv("MCP_SERVER_PORT", "8001")

	callbackPort, err := strconv.Atoi(GetEnv("CALLBACK_PORT", "3030"))
	if err != nil {
		return nil, fmt.Errorf("invalid CALLBACK_PORT: %w", err)
	}

	callbackTimeout, err := time.ParseDuration(GetEnv("CALLBACK_TIMEOUT", "300s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CALLBACK_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Issuer:             strings.TrimRight(os.Getenv(issuerEnvVar), "/"),
		Audience:           GetEnv(audienceEnvVar, "api://default"),
		ClientID:           os.Getenv(clientIDEnvVar),
		ClientSecret:       os.Getenv(clientSecretEnvVar),
		ServerHost:         host,
		ServerPort:         port,
		ServerURL:          GetEnv("MCP_SERVER_URL", fmt.Sprintf("http://%s:%s", host, port)),
		RequiredScopes:     SplitScopeList(GetEnv("MCP_REQUIRED_SCOPES", "mcp:access")),
		VerifierKind:       GetEnv("TOKEN_VERIFIER", VerifierIntrospection),
		ThirdPartyAPIURL:   os.Getenv("THIRD_PARTY_API_URL"),
		ThirdPartyScope:    os.Getenv("THIRD_PARTY_SCOPE"),
		ThirdPartyAudience: os.Getenv("THIRD_PARTY_AUDIENCE"),
		CallbackPort:       callbackPort,
		CallbackTimeout:    callbackTimeout,
		VerifySSL:          !strings.EqualFold(GetEnv("VERIFY_SSL", "true"), "false"),
		CABundlePath:       os.Getenv("CA_BUNDLE_PATH"),
		LogLevel:           GetEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("%s environment variable is required", issuerEnvVar)
	}
	if _, err := url.ParseRequestURI(c.Issuer); err != nil {
		return fmt.Errorf("invalid %s: %w", issuerEnvVar, err)
	}
	if c.VerifierKind != VerifierIntrospection && c.VerifierKind != VerifierJWT {
		return fmt.Errorf("TOKEN_VERIFIER must be %q or %q", VerifierIntrospection, VerifierJWT)
	}
	if c.VerifierKind == VerifierIntrospection && (c.ClientID == "" || c.ClientSecret == "") {
		return fmt.Errorf("%s and %s are required for introspection", clientIDEnvVar, clientSecretEnvVar)
	}
	return nil
}

// JWKSURL returns the identity provider's key-set endpoint.
func (c *Config) JWKSURL() string { return c.Issuer + "/v1/keys" }

// IntrospectionURL returns the identity provider's introspection endpoint.
func (c *Config) IntrospectionURL() string { return c.Issuer + "/v1/introspect" }

// TokenURL returns the identity provider's token endpoint.
func (c *Config) TokenURL() string { return c.Issuer + "/v1/token" }

// AuthorizeURL returns the identity provider's authorization endpoint.
func (c *Config) AuthorizeURL() string { return c.Issuer + "/v1/authorize" }

// ListenAddr returns the resource server's listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.ServerHost, c.ServerPort)
}

// SplitScopeList splits a space-delimited scope string into its parts.
func SplitScopeList(s string) []string {
	return strings.Fields(s)
}

// GetEnv returns the value of envVar, or defaultValue when unset or empty.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
