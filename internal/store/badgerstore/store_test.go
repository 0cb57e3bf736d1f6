package badgerstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db")
	db, err := Open(dir, false, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, arbor.NewLogger())
}

func TestStore_EnsureLibraryAndVersion_IsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.EnsureLibraryAndVersion(ctx, "react", "18.0")
	require.NoError(t, err)

	id2, err := s.EnsureLibraryAndVersion(ctx, "react", "18.0")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
}

func TestStore_UpdateVersionStatusAndProgress(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.EnsureLibraryAndVersion(ctx, "react", "18.0")
	require.NoError(t, err)

	require.NoError(t, s.UpdateVersionStatus(ctx, id, "running", ""))
	require.NoError(t, s.UpdateVersionProgress(ctx, id, 5, 20))

	rec, err := s.GetVersionByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "running", rec.Status)
	assert.Equal(t, 5, rec.ProgressPages)
	assert.Equal(t, 20, rec.ProgressMaxPages)
}

func TestStore_GetVersionsByStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.EnsureLibraryAndVersion(ctx, "react", "18.0")
	require.NoError(t, err)
	id2, err := s.EnsureLibraryAndVersion(ctx, "vue", "3.0")
	require.NoError(t, err)

	require.NoError(t, s.UpdateVersionStatus(ctx, id1, "running", ""))
	require.NoError(t, s.UpdateVersionStatus(ctx, id2, "completed", ""))

	running, err := s.GetVersionsByStatus(ctx, []string{"running"})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, id1, running[0].VersionID)

	both, err := s.GetVersionsByStatus(ctx, []string{"running", "completed"})
	require.NoError(t, err)
	assert.Len(t, both, 2)
}

func TestStore_AddScrapeResult_UpsertsByURL(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	result := models.ScrapeResult{URL: "https://example.com/docs", Title: "Docs", ETag: "v1"}
	require.NoError(t, s.AddScrapeResult(ctx, "react", "18.0", 0, result))

	versionID, err := s.EnsureLibraryAndVersion(ctx, "react", "18.0")
	require.NoError(t, err)

	pages, err := s.GetPagesByVersionID(ctx, versionID)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "https://example.com/docs", pages[0].URL)
	assert.Equal(t, "v1", pages[0].ETag)

	updated := models.ScrapeResult{URL: "https://example.com/docs", Title: "Docs v2", ETag: "v2"}
	require.NoError(t, s.AddScrapeResult(ctx, "react", "18.0", 0, updated))

	pages, err = s.GetPagesByVersionID(ctx, versionID)
	require.NoError(t, err)
	require.Len(t, pages, 1, "same URL must upsert rather than duplicate")
	assert.Equal(t, "v2", pages[0].ETag)
}

func TestStore_RemoveAllDocuments_ClearsPagesOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddScrapeResult(ctx, "react", "18.0", 0, models.ScrapeResult{URL: "https://example.com/a"}))
	require.NoError(t, s.AddScrapeResult(ctx, "react", "18.0", 1, models.ScrapeResult{URL: "https://example.com/b"}))

	versionID, err := s.EnsureLibraryAndVersion(ctx, "react", "18.0")
	require.NoError(t, err)

	require.NoError(t, s.RemoveAllDocuments(ctx, "react", "18.0"))

	pages, err := s.GetPagesByVersionID(ctx, versionID)
	require.NoError(t, err)
	assert.Empty(t, pages)

	_, err = s.GetVersionByID(ctx, versionID)
	assert.NoError(t, err, "version row itself must survive a document clear")
}

func TestStore_DeletePage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddScrapeResult(ctx, "react", "18.0", 0, models.ScrapeResult{URL: "https://example.com/a"}))
	versionID, err := s.EnsureLibraryAndVersion(ctx, "react", "18.0")
	require.NoError(t, err)

	pages, err := s.GetPagesByVersionID(ctx, versionID)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	require.NoError(t, s.DeletePage(ctx, pages[0].PageID))

	pages, err = s.GetPagesByVersionID(ctx, versionID)
	require.NoError(t, err)
	assert.Empty(t, pages)
}
