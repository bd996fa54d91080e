package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Keys under which the two settings documents are stored.
const (
	KeyStore   = "woocommerce_settings"
	KeyWebhook = "make_settings"
)

var (
	// ErrNotConfigured means the settings document has never been saved.
	ErrNotConfigured = errors.New("settings not configured")
	ErrInvalid       = errors.New("invalid settings")
	// ErrMissing is returned by backends for an absent key.
	ErrMissing = errors.New("settings key missing")
)

type Store struct {
	StoreURL          string `json:"storeUrl"`
	ConsumerKey       string `json:"consumerKey"`
	ConsumerSecret    string `json:"consumerSecret"`
	PreferredCategory string `json:"preferredCategory,omitempty"`
}

// BaseURL is the store URL without a trailing slash.
func (s Store) BaseURL() string { return strings.TrimRight(s.StoreURL, "/") }

type Webhook struct {
	WebhookURL string `json:"webhookUrl"`
}

const storeSchema = `{
  "type": "object",
  "required": ["storeUrl", "consumerKey", "consumerSecret"],
  "properties": {
    "storeUrl":          {"type": "string", "format": "uri", "pattern": "^https?://"},
    "consumerKey":       {"type": "string", "minLength": 1},
    "consumerSecret":    {"type": "string", "minLength": 1},
    "preferredCategory": {"type": "string"}
  }
}`

const webhookSchema = `{
  "type": "object",
  "required": ["webhookUrl"],
  "properties": {
    "webhookUrl": {"type": "string", "format": "uri", "pattern": "^https?://"}
  }
}`

var (
	storeLoader   = gojsonschema.NewStringLoader(storeSchema)
	webhookLoader = gojsonschema.NewStringLoader(webhookSchema)
)

func validate(schema gojsonschema.JSONLoader, body []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
	return nil
}

// Backend persists raw settings documents.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Verifier checks store credentials against the store before they are saved.
type Verifier func(ctx context.Context, s Store) error

// Provider reads and writes settings through a Backend, keeping the last
// value of each key in memory. Hooks run after every successful save.
type Provider struct {
	backend Backend
	verify  Verifier

	mu    sync.RWMutex
	cache map[string][]byte
	hooks []func(ctx context.Context, key string)
}

func NewProvider(b Backend) *Provider {
	return &Provider{backend: b, cache: map[string][]byte{}}
}

// VerifyWith sets the credential check run by SaveStore.
func (p *Provider) VerifyWith(v Verifier) { p.verify = v }

// OnSave registers a hook; hooks are called with the saved key.
func (p *Provider) OnSave(fn func(ctx context.Context, key string)) {
	p.mu.Lock()
	p.hooks = append(p.hooks, fn)
	p.mu.Unlock()
}

func (p *Provider) Store(ctx context.Context) (Store, error) {
	var s Store
	if err := p.load(ctx, KeyStore, storeLoader, &s); err != nil {
		return Store{}, err
	}
	return s, nil
}

func (p *Provider) Webhook(ctx context.Context) (Webhook, error) {
	var w Webhook
	if err := p.load(ctx, KeyWebhook, webhookLoader, &w); err != nil {
		return Webhook{}, err
	}
	return w, nil
}

// Configured reports whether usable store settings exist.
func (p *Provider) Configured(ctx context.Context) bool {
	_, err := p.Store(ctx)
	return err == nil
}

func (p *Provider) SaveStore(ctx context.Context, s Store) error {
	s.StoreURL = strings.TrimSpace(s.StoreURL)
	s.ConsumerKey = strings.TrimSpace(s.ConsumerKey)
	s.ConsumerSecret = strings.TrimSpace(s.ConsumerSecret)
	body, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := validate(storeLoader, body); err != nil {
		return err
	}
	if p.verify != nil {
		if err := p.verify(ctx, s); err != nil {
			return err
		}
	}
	return p.save(ctx, KeyStore, body)
}

// SetPreferredCategory changes only the category of saved store settings.
func (p *Provider) SetPreferredCategory(ctx context.Context, id string) error {
	s, err := p.Store(ctx)
	if err != nil {
		return err
	}
	s.PreferredCategory = strings.TrimSpace(id)
	body, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return p.save(ctx, KeyStore, body)
}

func (p *Provider) SaveWebhook(ctx context.Context, w Webhook) error {
	w.WebhookURL = strings.TrimSpace(w.WebhookURL)
	body, err := json.Marshal(w)
	if err != nil {
		return err
	}
	if err := validate(webhookLoader, body); err != nil {
		return err
	}
	return p.save(ctx, KeyWebhook, body)
}

// Seed stores value under key unless something is already saved there.
// Invalid seeds are rejected like any other save.
func (p *Provider) Seed(ctx context.Context, key string, value any) (bool, error) {
	if _, err := p.backend.Get(ctx, key); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrMissing) {
		return false, err
	}
	switch v := value.(type) {
	case Store:
		return true, p.SaveStore(ctx, v)
	case Webhook:
		return true, p.SaveWebhook(ctx, v)
	}
	return false, fmt.Errorf("settings: cannot seed %T", value)
}

func (p *Provider) save(ctx context.Context, key string, body []byte) error {
	if err := p.backend.Put(ctx, key, body); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	p.mu.Lock()
	p.cache[key] = body
	hooks := append([]func(context.Context, string){}, p.hooks...)
	p.mu.Unlock()
	for _, h := range hooks {
		h(ctx, key)
	}
	return nil
}

func (p *Provider) load(ctx context.Context, key string, schema gojsonschema.JSONLoader, out any) error {
	p.mu.RLock()
	body, ok := p.cache[key]
	p.mu.RUnlock()
	if !ok {
		b, err := p.backend.Get(ctx, key)
		if errors.Is(err, ErrMissing) {
			return ErrNotConfigured
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", key, err)
		}
		body = b
		p.mu.Lock()
		p.cache[key] = body
		p.mu.Unlock()
	}
	if err := validate(schema, body); err != nil {
		return errors.Join(ErrNotConfigured, err)
	}
	return json.Unmarshal(body, out)
}

// MemoryBackend keeps settings in process memory.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: map[string][]byte{}}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrMissing
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}
