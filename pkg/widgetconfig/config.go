package widgetconfig

import (
	"sync"

	"github.com/pkg/errors"
)

const (
	StatusLoading     = "Loading config..."
	StatusConnected   = "API Connected"
	StatusConfigError = "Config Error"
)

// DefaultSource is the configuration resource the widget asks for when nothing else is given.
const DefaultSource = "./config.json"

// Settings is the decoded configuration resource. Only apiUrl is recognized.
type Settings struct {
	APIURL string `json:"apiUrl"`
}

// Config holds the endpoint URL for the lifetime of a session.
// It starts empty and can be set exactly once.
type Config struct {
	mu     sync.RWMutex
	apiURL string
	set    bool
}

func NewConfig() *Config {
	return &Config{}
}

// Set stores the endpoint URL. Only the first successful call has an effect.
func (c *Config) Set(s Settings) error {
	if s.APIURL == "" {
		return errors.New("apiUrl is empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set {
		return errors.Errorf("endpoint already configured as %q", c.apiURL)
	}
	c.apiURL = s.APIURL
	c.set = true
	return nil
}

// APIURL returns the configured endpoint, or "" if the configuration never loaded.
func (c *Config) APIURL() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiURL
}

func (c *Config) IsSet() bool {
	return c.APIURL() != ""
}
