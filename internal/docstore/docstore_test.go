package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpetl/internal/model"
	"gpetl/internal/storage"
)

type fakeSink struct{ cfg Config }

func (f *fakeSink) Write(_ context.Context, _ string, docs []model.PatientDocument, _ storage.Strategy) (int64, error) {
	return int64(len(docs)), nil
}
func (f *fakeSink) Close(context.Context) error { return nil }

func TestRegisterAndNew(t *testing.T) {
	Register("fake", func(_ context.Context, cfg Config) (Sink, error) {
		return &fakeSink{cfg: cfg}, nil
	})
	s, err := New(context.Background(), Config{Kind: "fake", URI: "mem://"})
	require.NoError(t, err)
	assert.Equal(t, "mem://", s.(*fakeSink).cfg.URI)
	assert.Contains(t, Kinds(), "fake")
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "couchdb"})
	assert.ErrorContains(t, err, `unknown kind "couchdb"`)
}

func TestDocumentKey(t *testing.T) {
	assert.Equal(t, "patients:42", DocumentKey("patients", "42"))
	assert.Equal(t, "patients:", KeyPrefix("patients"))
}
