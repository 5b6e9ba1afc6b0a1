package schemas

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-publisher/internal/manifest"
	"github.com/jonathan/content-publisher/internal/types"
)

func TestValidateManifest_MalformedJSON(t *testing.T) {
	err := ValidateManifest([]byte("{ invalid json }"))
	require.Error(t, err)

	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "publishing_manifest.schema.json", loadErr.Path)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Errors: []FieldError{
			{Field: "runId", Message: "is required"},
			{Field: "totalItems", Message: "must be an integer"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "validation failed")
	assert.Contains(t, msg, "1. runId: is required")
	assert.Contains(t, msg, "2. totalItems")
}

func TestValidateManifest_WrittenByManager(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	m := manifest.New("run-7", t.TempDir(), false, manifest.WithClock(func() time.Time { return now }))
	title := "Hello"
	m.SetTotalItems(2)
	m.RecordResult(types.ItemResult{
		ContentID:       "a",
		Title:           &title,
		Status:          types.ResultSuccess,
		PlatformResults: map[string]types.PlatformResult{"storage": {Status: types.PlatformPublished, Path: "published_content/blog/hello.html"}},
	})
	m.AddDeferred(types.DeferredItem{ID: "b", ScheduledFor: "2026-05-01T00:00:00Z"})
	m.RecordSkip()
	require.NoError(t, m.Complete(types.ManifestCompleted))

	assert.NoError(t, ValidateManifestFile(m.Path()))
}

func TestValidateManifest_Invalid(t *testing.T) {
	doc := map[string]any{
		"runId":         "run-1",
		"timestamp":     "2026-04-01T00:00:00Z",
		"isDryRun":      false,
		"status":        "exploded",
		"totalItems":    -1,
		"successCount":  0,
		"failureCount":  0,
		"skippedCount":  0,
		"retryCount":    0,
		"deferredItems": []any{},
		"results":       []any{map[string]any{"contentId": "a", "status": "success"}},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	err = ValidateManifest(data)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	fields := make([]string, 0, len(validationErr.Errors))
	for _, fe := range validationErr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, "status")
	assert.Contains(t, fields, "totalItems")
	assert.Contains(t, fields, "results.0")
}

func TestValidateManifestFile_Missing(t *testing.T) {
	err := ValidateManifestFile(filepath.Join(t.TempDir(), "none.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read manifest")
}
