package fulfill

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esignworks/connect-worker/internal/esign"
)

// mockTokens is a mock implementation of TokenSource
type mockTokens struct {
	tokenFunc func(ctx context.Context) (string, error)
}

func (m *mockTokens) Token(ctx context.Context) (string, error) {
	if m.tokenFunc != nil {
		return m.tokenFunc(ctx)
	}
	return "test-token", nil
}

// mockDocuments is a mock implementation of DocumentFetcher
type mockDocuments struct {
	fetchFunc func(ctx context.Context, accessToken, envelopeID string) ([]byte, error)
}

func (m *mockDocuments) GetCombinedDocument(ctx context.Context, accessToken, envelopeID string) ([]byte, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, accessToken, envelopeID)
	}
	return []byte("%PDF-1.7 test"), nil
}

func newTestFulfiller(t *testing.T, tokens TokenSource, documents DocumentFetcher) *Fulfiller {
	t.Helper()
	return New(tokens, documents, Config{
		OutputDir:   t.TempDir(),
		FilePrefix:  "order_",
		BreakMarker: "/break",
	})
}

func TestFulfill_WritesArtifact(t *testing.T) {
	var gotToken, gotEnvelope string
	documents := &mockDocuments{
		fetchFunc: func(ctx context.Context, accessToken, envelopeID string) ([]byte, error) {
			gotToken = accessToken
			gotEnvelope = envelopeID
			return []byte("%PDF-1.7 body"), nil
		},
	}

	f := newTestFulfiller(t, &mockTokens{}, documents)

	path, err := f.Fulfill(context.Background(), "env-1", "SO-1043/B")
	require.NoError(t, err)

	assert.Equal(t, "test-token", gotToken)
	assert.Equal(t, "env-1", gotEnvelope)
	assert.Equal(t, f.ArtifactPath("SO-1043/B"), path)
	assert.Equal(t, "order_SO_1043_B.pdf", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(data))
}

func TestFulfill_OverwriteIsIdempotent(t *testing.T) {
	body := "first"
	documents := &mockDocuments{
		fetchFunc: func(ctx context.Context, accessToken, envelopeID string) ([]byte, error) {
			return []byte(body), nil
		},
	}

	f := newTestFulfiller(t, &mockTokens{}, documents)

	path1, err := f.Fulfill(context.Background(), "env-1", "SO-9")
	require.NoError(t, err)

	// Redelivery of the same notification fetches again and overwrites the
	// same path, leaving exactly one artifact behind.
	body = "second delivery"
	path2, err := f.Fulfill(context.Background(), "env-1", "SO-9")
	require.NoError(t, err)
	assert.Equal(t, path1, path2)

	data, err := os.ReadFile(path2)
	require.NoError(t, err)
	assert.Equal(t, "second delivery", string(data))

	entries, err := os.ReadDir(filepath.Dir(path2))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFulfill_CreatesOutputDir(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "artifacts", "orders")
	f := New(&mockTokens{}, &mockDocuments{}, Config{
		OutputDir:  outputDir,
		FilePrefix: "order_",
	})

	path, err := f.Fulfill(context.Background(), "env-1", "SO-1")
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFulfill_TokenFailure(t *testing.T) {
	authErr := &esign.AuthError{Kind: esign.AuthOther, Message: "token endpoint down"}
	tokens := &mockTokens{
		tokenFunc: func(ctx context.Context) (string, error) {
			return "", authErr
		},
	}
	fetched := false
	documents := &mockDocuments{
		fetchFunc: func(ctx context.Context, accessToken, envelopeID string) ([]byte, error) {
			fetched = true
			return nil, nil
		},
	}

	f := newTestFulfiller(t, tokens, documents)

	_, err := f.Fulfill(context.Background(), "env-1", "SO-1")
	require.Error(t, err)
	assert.False(t, fetched, "fetch must not run without a token")

	var fulfillErr *FulfillmentError
	require.True(t, errors.As(err, &fulfillErr))
	assert.Equal(t, "env-1", fulfillErr.EnvelopeID)
	assert.Equal(t, "SO-1", fulfillErr.BusinessKey)
	assert.Equal(t, "acquire token", fulfillErr.Step)

	// Auth classification survives the wrap.
	var unwrapped *esign.AuthError
	require.True(t, errors.As(err, &unwrapped))
	assert.Equal(t, esign.AuthOther, unwrapped.Kind)
}

func TestFulfill_FetchFailure(t *testing.T) {
	documents := &mockDocuments{
		fetchFunc: func(ctx context.Context, accessToken, envelopeID string) ([]byte, error) {
			return nil, errors.New("document response status 500")
		},
	}

	f := newTestFulfiller(t, &mockTokens{}, documents)

	_, err := f.Fulfill(context.Background(), "env-1", "SO-1")

	var fulfillErr *FulfillmentError
	require.True(t, errors.As(err, &fulfillErr))
	assert.Equal(t, "fetch document", fulfillErr.Step)
}

func TestFulfill_BreakMarker(t *testing.T) {
	fetched := false
	documents := &mockDocuments{
		fetchFunc: func(ctx context.Context, accessToken, envelopeID string) ([]byte, error) {
			fetched = true
			return []byte("%PDF"), nil
		},
	}

	f := newTestFulfiller(t, &mockTokens{}, documents)

	_, err := f.Fulfill(context.Background(), "env-1", "SO-1/break")
	require.Error(t, err)
	assert.True(t, fetched, "the synthetic fault fires after the fetch")

	var fulfillErr *FulfillmentError
	require.True(t, errors.As(err, &fulfillErr))
	assert.Equal(t, "break marker", fulfillErr.Step)

	// Nothing may be written for a broken fulfillment.
	entries, err := os.ReadDir(f.cfg.OutputDir)
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestFulfill_BreakMarkerDisabled(t *testing.T) {
	f := New(&mockTokens{}, &mockDocuments{}, Config{
		OutputDir:  t.TempDir(),
		FilePrefix: "order_",
	})

	_, err := f.Fulfill(context.Background(), "env-1", "SO-1/break")
	assert.NoError(t, err, "empty marker disables the synthetic fault")
}

func TestFulfill_ConcurrentDistinctKeys(t *testing.T) {
	documents := &mockDocuments{
		fetchFunc: func(ctx context.Context, accessToken, envelopeID string) ([]byte, error) {
			return []byte("artifact for " + envelopeID), nil
		},
	}

	f := newTestFulfiller(t, &mockTokens{}, documents)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			envelopeID := fmt.Sprintf("env-%d", i)
			key := fmt.Sprintf("SO-%d", i)
			path, err := f.Fulfill(context.Background(), envelopeID, key)
			if err != nil {
				t.Errorf("Fulfill(%s) error = %v", key, err)
				return
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Errorf("read %s: %v", path, err)
				return
			}
			if string(data) != "artifact for "+envelopeID {
				t.Errorf("artifact for %s holds %q", key, data)
			}
		}(i)
	}
	wg.Wait()
}

func TestArtifactPath(t *testing.T) {
	f := New(nil, nil, Config{OutputDir: "/var/orders", FilePrefix: "order_"})

	assert.Equal(t, filepath.Join("/var/orders", "order_SO_123_A.pdf"), f.ArtifactPath("SO-123/A"))
	assert.Equal(t, f.ArtifactPath("SO 123"), f.ArtifactPath("SO/123"), "distinct keys may collide only after sanitizing")
}
