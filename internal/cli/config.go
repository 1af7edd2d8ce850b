package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds CLI configuration
type Config struct {
	ServerURL string
	Token     string
	TokenFile string
	Output    string
	Verbose   bool
	NoRefresh bool

	// RefreshToken is loaded from the token file alongside the access token
	RefreshToken string
}

// savedTokens is the on-disk token file format
type savedTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("MOVIENIGHT_SERVER", "http://localhost:8080"),
		Token:     os.Getenv("MOVIENIGHT_TOKEN"),
		TokenFile: getEnvOrDefault("MOVIENIGHT_TOKEN_FILE", defaultTokenFile()),
		Output:    "text",
		Verbose:   false,
	}
}

// LoadToken loads tokens from file. An access token given by flag or
// environment takes precedence over the saved one.
func (c *Config) LoadToken() error {
	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No token file is fine
		}
		return err
	}

	var saved savedTokens
	if err := json.Unmarshal(data, &saved); err != nil {
		return err
	}

	c.RefreshToken = saved.RefreshToken
	if c.Token == "" {
		c.Token = saved.AccessToken
	}
	return nil
}

// SaveTokens saves a session to the token file
func (c *Config) SaveTokens(accessToken, refreshToken string) error {
	c.Token = accessToken
	c.RefreshToken = refreshToken

	dir := filepath.Dir(c.TokenFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.Marshal(savedTokens{AccessToken: accessToken, RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	return os.WriteFile(c.TokenFile, data, 0600)
}

// ClearTokens removes the token file
func (c *Config) ClearTokens() error {
	c.Token = ""
	c.RefreshToken = ""
	if err := os.Remove(c.TokenFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".movienight/token.json"
	}
	return filepath.Join(home, ".movienight", "token.json")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
