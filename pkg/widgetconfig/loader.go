package widgetconfig

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// LoadError is returned for every failure to obtain the endpoint URL:
// transport errors, unexpected status codes, malformed JSON or a missing apiUrl.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e == nil {
		return ""
	}
	return "could not load " + e.Source + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }

// StatusSink receives status indicator updates.
type StatusSink interface {
	SetStatus(status string)
}

type StatusSinkFunc func(status string)

func (f StatusSinkFunc) SetStatus(status string) { f(status) }

// Loader fetches the configuration resource. Source is either an http(s) URL,
// a file:// URL, or a local path.
type Loader struct {
	Source     string
	HTTPClient *http.Client
}

func NewLoader(source string) *Loader {
	return &Loader{Source: source, HTTPClient: http.DefaultClient}
}

// ResolveSource turns a config reference into something Loader can fetch.
// A relative ref is resolved against base when base is a URL, mirroring how a
// page resolves "./config.json" against its own location.
func ResolveSource(base, ref string) (string, error) {
	if ref == "" {
		ref = DefaultSource
	}
	refURL, err := url.Parse(ref)
	if err == nil && refURL.IsAbs() {
		return ref, nil
	}
	if base == "" {
		return ref, nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "invalid base url %q", base)
	}
	if !baseURL.IsAbs() {
		if filepath.IsAbs(ref) {
			return ref, nil
		}
		return filepath.Join(base, ref), nil
	}
	if refURL == nil {
		return "", errors.Errorf("invalid config reference %q", ref)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// Load performs a single fetch of the configuration resource. It is never retried.
// A relative apiUrl is resolved against an http(s) source the way a page
// resolves it against its own location; relative to a local file it is an error.
func (l *Loader) Load(ctx context.Context) (Settings, error) {
	body, err := l.fetch(ctx)
	if err != nil {
		return Settings{}, &LoadError{Source: l.Source, Err: err}
	}

	var s Settings
	if err := json.Unmarshal(body, &s); err != nil {
		return Settings{}, &LoadError{Source: l.Source, Err: errors.Wrap(err, "invalid config json")}
	}
	s.APIURL = strings.TrimSpace(s.APIURL)
	if s.APIURL == "" {
		return Settings{}, &LoadError{Source: l.Source, Err: errors.New("apiUrl is missing")}
	}
	apiURL, err := resolveAPIURL(l.Source, s.APIURL)
	if err != nil {
		return Settings{}, &LoadError{Source: l.Source, Err: err}
	}
	s.APIURL = apiURL
	return s, nil
}

func resolveAPIURL(source, apiURL string) (string, error) {
	ref, err := url.Parse(apiURL)
	if err != nil {
		return "", errors.Wrapf(err, "invalid apiUrl %q", apiURL)
	}
	if ref.IsAbs() {
		return apiURL, nil
	}
	base, err := url.Parse(source)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return "", errors.Errorf("apiUrl %q is relative and %s is not a URL it can be resolved against", apiURL, source)
	}
	return base.ResolveReference(ref).String(), nil
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	u, err := url.Parse(l.Source)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return l.fetchHTTP(ctx)
	}
	path := l.Source
	if err == nil && u.Scheme == "file" {
		path = u.Path
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	return b, nil
}

func (l *Loader) fetchHTTP(ctx context.Context) ([]byte, error) {
	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.Source, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build config request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch config")
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read config response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("config request returned %s", resp.Status)
	}
	return b, nil
}

// Startup runs the config phase: status goes to loading, then to connected
// or to the error state. On error cfg stays empty for the rest of the session.
func Startup(ctx context.Context, loader *Loader, cfg *Config, status StatusSink) error {
	status.SetStatus(StatusLoading)

	s, err := loader.Load(ctx)
	if err == nil {
		err = cfg.Set(s)
	}
	if err != nil {
		log.Error().Err(err).Str("source", loader.Source).Msg("Could not load config")
		status.SetStatus(StatusConfigError)
		return err
	}

	log.Info().Str("source", loader.Source).Str("api_url", s.APIURL).Msg("Loaded config")
	status.SetStatus(StatusConnected)
	return nil
}
