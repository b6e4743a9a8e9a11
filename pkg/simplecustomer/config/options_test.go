package config

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DatabaseMemory, cfg.DatabaseType)
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.Equal(t, simplecustomer.DefaultPageSize, cfg.PageSize)
	assert.Equal(t, "timestamp", cfg.KeyStrategy)

	size, err := cfg.MaxUploadBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(5<<20), size)
}

func TestOptions(t *testing.T) {
	cfg, err := Load(
		WithPort("9000"),
		WithEnvironment("testing"),
		WithDatabase("postgres://localhost/customers"),
		WithDatabaseSchema("crm"),
		WithS3Storage("photos", "", "http://localhost:9000", true),
		WithKeyStrategy("git-like"),
		WithPublicBaseURL("https://cdn.example.com/"),
		WithPageSize(25),
		WithCursorSecret("k"),
		WithCursorMaxAge(time.Hour),
		WithMaxUploadSize("1MB"),
		WithLogging("WARN", "JSON"),
	)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "testing", cfg.Environment)
	assert.Equal(t, DatabasePostgres, cfg.DatabaseType)
	assert.Equal(t, "crm", cfg.DBSchema)
	assert.Equal(t, StorageS3, cfg.Storage.Type)
	assert.Equal(t, "us-east-1", cfg.Storage.Config["region"])
	assert.Equal(t, true, cfg.Storage.Config["use_path_style"])
	assert.Equal(t, "https://cdn.example.com", cfg.PublicBaseURL)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, time.Hour, cfg.CursorMaxAge)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestOptionErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"empty port", WithPort("")},
		{"empty environment", WithEnvironment("")},
		{"empty database", WithDatabase("")},
		{"unknown database", WithDatabase("redis://localhost")},
		{"empty storage", WithStorage("")},
		{"empty fs dir", WithFilesystemStorage("")},
		{"empty s3 bucket", WithS3Storage("", "", "", false)},
		{"empty gcs bucket", WithGCSStorage("", false)},
		{"zero page size", WithPageSize(0)},
		{"negative max age", WithCursorMaxAge(-time.Second)},
		{"zero upload size", WithMaxUploadSize("0")},
		{"relative public base url", WithPublicBaseURL("/assets")},
		{"local storage in production without base url", WithEnvironment("production")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg, err := Load(WithLogging("warn", "json"))
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestURLStrategy(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		expected string
	}{
		{
			name:     "memory served locally",
			opts:     []Option{WithPort("9000")},
			expected: "http://localhost:9000/assets/k.png",
		},
		{
			name:     "fs served locally",
			opts:     []Option{WithFilesystemStorage("/tmp/images")},
			expected: "http://localhost:8080/assets/k.png",
		},
		{
			name:     "s3 bucket url",
			opts:     []Option{WithS3Storage("photos", "eu-west-1", "", false)},
			expected: "https://photos.s3.eu-west-1.amazonaws.com/k.png",
		},
		{
			name:     "gcs bucket url",
			opts:     []Option{WithGCSStorage("photos", true)},
			expected: "https://storage.googleapis.com/photos/k.png",
		},
		{
			name:     "public base url wins",
			opts:     []Option{WithS3Storage("photos", "eu-west-1", "", false), WithPublicBaseURL("https://cdn.example.com")},
			expected: "https://cdn.example.com/k.png",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.opts...)
			require.NoError(t, err)

			urls, err := cfg.urlStrategy()
			require.NoError(t, err)
			got, err := urls.PublicURL("k.png")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestBuildService(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg, err := Load(WithLogging("error", "text"))
		require.NoError(t, err)

		rt, err := cfg.BuildService(ctx)
		require.NoError(t, err)
		defer rt.Close()
		assert.NotNil(t, rt.Assets)

		c, err := rt.Service.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{
			Attributes: simplecustomer.Attributes{"name": "Acme"},
			Image:      &simplecustomer.Asset{FileName: "logo.png", ContentType: "image/png", Body: strings.NewReader("png")},
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(c.ImageURL(), "http://localhost:8080/assets/"), c.ImageURL())
	})

	t.Run("bolt and fs with cdn", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := Load(
			WithDatabase("bolt://"+dir+"/customers.db"),
			WithFilesystemStorage(dir+"/images"),
			WithPublicBaseURL("https://cdn.example.com"),
			WithPageSize(1),
			WithLogging("error", "text"),
		)
		require.NoError(t, err)

		rt, err := cfg.BuildService(ctx)
		require.NoError(t, err)
		defer rt.Close()

		c, err := rt.Service.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{
			Attributes: simplecustomer.Attributes{"name": "Acme"},
			Image:      &simplecustomer.Asset{FileName: "logo.png", Body: strings.NewReader("png")},
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(c.ImageURL(), "https://cdn.example.com/"))

		_, err = rt.Service.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{Attributes: simplecustomer.Attributes{"name": "Beta"}})
		require.NoError(t, err)

		page, err := rt.Service.ListCustomers(ctx, simplecustomer.ListCustomersRequest{})
		require.NoError(t, err)
		assert.Len(t, page.Items, 1)
		assert.True(t, page.HasMore())
	})

	t.Run("cursor secret is applied", func(t *testing.T) {
		build := func(secret string) simplecustomer.Service {
			cfg, err := Load(WithCursorSecret(secret), WithPageSize(1), WithLogging("error", "text"))
			require.NoError(t, err)
			rt, err := cfg.BuildService(ctx)
			require.NoError(t, err)
			t.Cleanup(func() { rt.Close() })
			return rt.Service
		}

		a := build("one")
		for i := 0; i < 2; i++ {
			_, err := a.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{Attributes: simplecustomer.Attributes{"n": "x"}})
			require.NoError(t, err)
		}
		page, err := a.ListCustomers(ctx, simplecustomer.ListCustomersRequest{})
		require.NoError(t, err)
		require.True(t, page.HasMore())

		_, err = build("two").ListCustomers(ctx, simplecustomer.ListCustomersRequest{PageToken: page.NextPageToken})
		assert.ErrorIs(t, err, simplecustomer.ErrInvalidCursor)
	})
}
