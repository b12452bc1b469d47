package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/matheus3301/zfetch/internal/fetch"
	"github.com/matheus3301/zfetch/internal/narrow"
	"github.com/matheus3301/zfetch/internal/zulip"
)

// APIKeyEnv overrides realm.api_key when set.
const APIKeyEnv = "ZFETCH_API_KEY"

// Session is the per-session config.toml: which realm to fetch from and
// how.
type Session struct {
	Realm       Realm         `toml:"realm"`
	Fetch       Fetch         `toml:"fetch"`
	BaseNarrow  []narrow.Term `toml:"base_narrow"`
	MetricsAddr string        `toml:"metrics_addr"`
	LogLevel    string        `toml:"log_level"`
}

type Realm struct {
	URL       string   `toml:"url"`
	Email     string   `toml:"email"`
	APIKey    string   `toml:"api_key"`
	APIPrefix string   `toml:"api_prefix"`
	Timeout   Duration `toml:"timeout"`
}

// Fetch holds page sizes. Keys missing from the file keep their defaults.
type Fetch struct {
	Anchor           string   `toml:"anchor"`
	NumBeforePointer int      `toml:"num_before_pointer"`
	NumAfterPointer  int      `toml:"num_after_pointer"`
	BackwardBatch    int      `toml:"backward_batch"`
	ForwardBatch     int      `toml:"forward_batch"`
	CatchUpBatch     int      `toml:"catch_up_batch"`
	BackfillBatch    int      `toml:"backfill_batch"`
	NarrowBefore     int      `toml:"narrow_before"`
	NarrowAfter      int      `toml:"narrow_after"`
	BackfillIdle     Duration `toml:"backfill_idle"`
}

// Duration is a time.Duration written as a string such as "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultSession returns a session config with every fetch default filled in.
func DefaultSession() *Session {
	def := fetch.DefaultConfig()
	return &Session{
		Realm: Realm{
			APIPrefix: "/json",
			Timeout:   Duration{30 * time.Second},
		},
		Fetch: Fetch{
			NumBeforePointer: def.NumBeforePointer,
			NumAfterPointer:  def.NumAfterPointer,
			BackwardBatch:    def.BackwardBatch,
			ForwardBatch:     def.ForwardBatch,
			CatchUpBatch:     def.CatchUpBatch,
			BackfillBatch:    def.BackfillBatch,
			NarrowBefore:     def.NarrowBefore,
			NarrowAfter:      def.NarrowAfter,
			BackfillIdle:     Duration{def.BackfillIdle},
		},
		MetricsAddr: "127.0.0.1:9464",
		LogLevel:    "info",
	}
}

// LoadSession reads a session config over the defaults. A missing file
// yields the defaults.
func LoadSession(path string) (*Session, error) {
	cfg := DefaultSession()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if key := os.Getenv(APIKeyEnv); key != "" {
		cfg.Realm.APIKey = key
	}
	return cfg, nil
}

// SaveSession writes a session config with 0600 permissions.
func SaveSession(path string, cfg *Session) error {
	return writeTOML(path, cfg)
}

// Validate checks the fields the daemon needs to start.
func (s *Session) Validate() error {
	if s.Realm.URL == "" {
		return errors.New("realm.url is required")
	}
	if s.Realm.Email == "" || s.Realm.APIKey == "" {
		return fmt.Errorf("realm.email and realm.api_key (or %s) are required", APIKeyEnv)
	}
	if s.Fetch.Anchor != "" && !zulip.Anchor(s.Fetch.Anchor).Valid() {
		return fmt.Errorf("fetch.anchor %q is not a message id, newest, oldest or first_unread", s.Fetch.Anchor)
	}
	sizes := map[string]int{
		"num_before_pointer": s.Fetch.NumBeforePointer,
		"num_after_pointer":  s.Fetch.NumAfterPointer,
		"backward_batch":     s.Fetch.BackwardBatch,
		"forward_batch":      s.Fetch.ForwardBatch,
		"catch_up_batch":     s.Fetch.CatchUpBatch,
		"backfill_batch":     s.Fetch.BackfillBatch,
		"narrow_before":      s.Fetch.NarrowBefore,
		"narrow_after":       s.Fetch.NarrowAfter,
	}
	for name, v := range sizes {
		if v < 0 {
			return fmt.Errorf("fetch.%s must not be negative", name)
		}
	}
	if s.Fetch.BackfillIdle.Duration <= 0 {
		return errors.New("fetch.backfill_idle must be positive")
	}
	return nil
}

// FetchConfig converts the session settings for the fetcher.
func (s *Session) FetchConfig() fetch.Config {
	return fetch.Config{
		NumBeforePointer: s.Fetch.NumBeforePointer,
		NumAfterPointer:  s.Fetch.NumAfterPointer,
		BackwardBatch:    s.Fetch.BackwardBatch,
		ForwardBatch:     s.Fetch.ForwardBatch,
		CatchUpBatch:     s.Fetch.CatchUpBatch,
		BackfillBatch:    s.Fetch.BackfillBatch,
		NarrowBefore:     s.Fetch.NarrowBefore,
		NarrowAfter:      s.Fetch.NarrowAfter,
		BackfillIdle:     s.Fetch.BackfillIdle.Duration,
		Pointer:          zulip.Anchor(s.Fetch.Anchor),
		BaseNarrow:       narrow.Filter(s.BaseNarrow),
	}
}

// ClientOptions converts the realm settings for the API client.
func (s *Session) ClientOptions() zulip.Options {
	return zulip.Options{
		BaseURL:   s.Realm.URL,
		APIPrefix: s.Realm.APIPrefix,
		Email:     s.Realm.Email,
		APIKey:    s.Realm.APIKey,
	}
}
