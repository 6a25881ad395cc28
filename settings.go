package spindle

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"
)

const (
	// DefaultUserAgent identifies the bundled fetchers.
	DefaultUserAgent = "spindle/1.0 (+https://github.com/spindleworks/spindle)"
	// DefaultTimeout bounds a single transport fetch when Settings.Timeout
	// is zero.
	DefaultTimeout = 30 * time.Second
)

// Settings is the immutable configuration record for one crawl invocation.
// There is no process-wide configuration: each engine binds one Settings
// value and never mutates it mid-crawl. The zero value is usable; zero
// Timeout and UserAgent resolve to the package defaults.
type Settings struct {
	// CacheEnabled turns the response cache on. Off, no cache operation
	// ever runs and every request goes to the downloader.
	CacheEnabled bool `mapstructure:"HTTP_CACHE_ENABLED"`

	// Fingerprint replaces the default request fingerprint. The engine uses
	// it exclusively, for scheduler dedup and cache keys alike, so a
	// degenerate function (a constant, say) makes every request the same
	// crawl target.
	Fingerprint FingerprintFunc `mapstructure:"-"`

	// HTTPProxy and HTTPSProxy are proxy URLs applied by request scheme.
	HTTPProxy  string `mapstructure:"HTTP_PROXY"`
	HTTPSProxy string `mapstructure:"HTTPS_PROXY"`

	// Delay is the minimum gap between consecutive fetches, measured from
	// the moment the previous fetch returned. Zero disables the wait; the
	// first fetch of a crawl is never delayed.
	Delay time.Duration `mapstructure:"DOWNLOAD_DELAY"`

	// Timeout bounds a single transport fetch.
	Timeout time.Duration `mapstructure:"DOWNLOAD_TIMEOUT"`

	// UserAgent is sent by the bundled fetchers.
	UserAgent string `mapstructure:"USER_AGENT"`

	// Cache replaces the per-crawl in-memory cache. An installed backend is
	// used as-is, so it may be shared between crawls or persist on disk.
	Cache Cache `mapstructure:"-"`

	// Fetcher replaces the default colly-backed transport.
	Fetcher Fetcher `mapstructure:"-"`

	// Logger receives engine logs. Nil disables logging.
	Logger *zap.Logger `mapstructure:"-"`
}

// NewSettings returns the default settings for one crawl.
func NewSettings() *Settings {
	return &Settings{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// settingsKeyFingerprinter is handled outside mapstructure because function
// values do not decode.
const settingsKeyFingerprinter = "REQUEST_FINGERPRINTER"

// FromMap returns a copy of s overlaid with the recognized keys present in
// overrides. Unrecognized keys are ignored, keeping the surface open to
// future options. DOWNLOAD_DELAY and DOWNLOAD_TIMEOUT accept numbers
// (seconds) or Go duration strings; REQUEST_FINGERPRINTER must be a
// FingerprintFunc or func(*Request) string.
func (s *Settings) FromMap(overrides map[string]any) (*Settings, error) {
	out := s.clone()
	if len(overrides) == 0 {
		return out, nil
	}
	rest := make(map[string]any, len(overrides))
	for k, v := range overrides {
		rest[k] = v
	}
	if v, ok := rest[settingsKeyFingerprinter]; ok {
		delete(rest, settingsKeyFingerprinter)
		switch fn := v.(type) {
		case FingerprintFunc:
			out.Fingerprint = fn
		case func(*Request) string:
			out.Fingerprint = fn
		default:
			return nil, fmt.Errorf("%s: want func(*Request) string, got %T", settingsKeyFingerprinter, v)
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return nil, fmt.Errorf("build settings decoder: %w", err)
	}
	if err := dec.Decode(rest); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return out, nil
}

// secondsToDurationHook decodes bare numbers into durations counted in
// seconds, the unit the overlay keys historically used.
func secondsToDurationHook(_, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case int32:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float32:
		return time.Duration(float64(v) * float64(time.Second)), nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}

// ProxyFor returns the proxy URL configured for a request scheme, empty
// when the scheme connects directly.
func (s *Settings) ProxyFor(scheme string) string {
	switch strings.ToLower(scheme) {
	case "http":
		return s.HTTPProxy
	case "https":
		return s.HTTPSProxy
	}
	return ""
}

func (s *Settings) clone() *Settings {
	if s == nil {
		return NewSettings()
	}
	out := *s
	return &out
}

// withDefaults resolves the zero fields an engine needs concrete values
// for. The caller's Settings value is never touched.
func (s *Settings) withDefaults() *Settings {
	out := s.clone()
	if out.Fingerprint == nil {
		out.Fingerprint = DefaultFingerprint
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.UserAgent == "" {
		out.UserAgent = DefaultUserAgent
	}
	return out
}
