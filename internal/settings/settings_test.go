package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validStore() Store {
	return Store{
		StoreURL:       "https://pizzeria.example/",
		ConsumerKey:    "ck_1",
		ConsumerSecret: "cs_1",
	}
}

func TestStore_NotConfigured(t *testing.T) {
	p := NewProvider(NewMemoryBackend())
	_, err := p.Store(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = p.Webhook(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, p.Configured(context.Background()))
}

func TestSaveStore_RoundTripAndHooks(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(NewMemoryBackend())
	var saved []string
	p.OnSave(func(_ context.Context, key string) { saved = append(saved, key) })

	require.NoError(t, p.SaveStore(ctx, validStore()))
	s, err := p.Store(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ck_1", s.ConsumerKey)
	assert.Equal(t, "https://pizzeria.example", s.BaseURL())

	require.NoError(t, p.SetPreferredCategory(ctx, " 17 "))
	s, _ = p.Store(ctx)
	assert.Equal(t, "17", s.PreferredCategory)
	assert.Equal(t, []string{KeyStore, KeyStore}, saved)
}

func TestSaveStore_Validation(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(NewMemoryBackend())

	s := validStore()
	s.ConsumerKey = "  "
	assert.ErrorIs(t, p.SaveStore(ctx, s), ErrInvalid)

	s = validStore()
	s.StoreURL = "not a url"
	assert.ErrorIs(t, p.SaveStore(ctx, s), ErrInvalid)

	s = validStore()
	s.StoreURL = "ftp://pizzeria.example"
	assert.ErrorIs(t, p.SaveStore(ctx, s), ErrInvalid)

	assert.False(t, p.Configured(ctx))
}

func TestSaveStore_VerifierBlocksSave(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(NewMemoryBackend())
	bad := errors.New("401 woocommerce_rest_cannot_view")
	p.VerifyWith(func(context.Context, Store) error { return bad })

	assert.ErrorIs(t, p.SaveStore(ctx, validStore()), bad)
	assert.False(t, p.Configured(ctx))
}

func TestSaveWebhook(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(NewMemoryBackend())

	assert.ErrorIs(t, p.SaveWebhook(ctx, Webhook{WebhookURL: ""}), ErrInvalid)
	require.NoError(t, p.SaveWebhook(ctx, Webhook{WebhookURL: "https://hook.eu1.make.com/abc"}))
	w, err := p.Webhook(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://hook.eu1.make.com/abc", w.WebhookURL)
}

func TestSeed_OnlyWhenMissing(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(NewMemoryBackend())

	seeded, err := p.Seed(ctx, KeyStore, validStore())
	require.NoError(t, err)
	assert.True(t, seeded)

	other := validStore()
	other.ConsumerKey = "ck_2"
	seeded, err = p.Seed(ctx, KeyStore, other)
	require.NoError(t, err)
	assert.False(t, seeded)

	s, _ := p.Store(ctx)
	assert.Equal(t, "ck_1", s.ConsumerKey)
}

func TestStore_CorruptBackendValue(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.Put(ctx, KeyStore, []byte(`{"storeUrl":"https://x.example"}`)))

	_, err := NewProvider(b).Store(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, err, ErrInvalid)
}
