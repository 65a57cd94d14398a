package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testFileRepo(t *testing.T) *FileRepo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&File{}))
	return NewFileRepo(db)
}

// fakeIndex records calls instead of touching a real vector store.
type fakeIndex struct {
	upserted    []Chunk
	deletedFile []string
	deletedComp []string
	upsertErr   error
}

func (f *fakeIndex) Upsert(ctx context.Context, chunks []Chunk) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, chunks...)
	return nil
}

func (f *fakeIndex) DeleteByFile(ctx context.Context, fileID string) error {
	f.deletedFile = append(f.deletedFile, fileID)
	return nil
}

func (f *fakeIndex) DeleteByCompanion(ctx context.Context, companionID string) error {
	f.deletedComp = append(f.deletedComp, companionID)
	return nil
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func seedFile(t *testing.T, repo *FileRepo, path string) *File {
	t.Helper()
	f := &File{
		ID:          "01J8ULIDULIDULIDULIDULIDFF",
		CompanionID: "5f0c2f1e-0000-4000-8000-000000000001",
		FileName:    filepath.Base(path),
		FilePath:    path,
		Status:      StatusUploaded,
	}
	require.NoError(t, repo.Create(context.Background(), f))
	return f
}

func TestIngestFileSuccess(t *testing.T) {
	repo := testFileRepo(t)
	index := &fakeIndex{}
	embedder := &fakeEmbedder{dims: 4}
	svc := NewService(repo, index, embedder)

	path := writeDoc(t, "notes.txt", "The capital of France is Paris.\n\nThe Seine flows through it.")
	f := seedFile(t, repo, path)

	require.NoError(t, svc.IngestFile(context.Background(), f.ID))

	got, err := repo.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, got.Status)
	assert.Nil(t, got.ErrorMessage)

	// prior vectors were cleared before the upsert
	assert.Equal(t, []string{f.ID}, index.deletedFile)
	require.NotEmpty(t, index.upserted)
	for _, c := range index.upserted {
		assert.Equal(t, f.ID, c.FileID)
		assert.Equal(t, f.CompanionID, c.CompanionID)
		assert.Equal(t, "notes.txt", c.FileName)
		assert.NotEmpty(t, c.Content)
	}
}

func TestIngestFileMissingDocumentMarksFailed(t *testing.T) {
	repo := testFileRepo(t)
	svc := NewService(repo, &fakeIndex{}, &fakeEmbedder{dims: 4})

	f := seedFile(t, repo, filepath.Join(t.TempDir(), "gone.txt"))

	require.Error(t, svc.IngestFile(context.Background(), f.ID))

	got, err := repo.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "file not found")
}

func TestIngestFileEmbeddingFailureMarksFailed(t *testing.T) {
	repo := testFileRepo(t)
	svc := NewService(repo, &fakeIndex{}, &fakeEmbedder{err: errors.New("quota exceeded")})

	path := writeDoc(t, "notes.md", "some content to embed")
	f := seedFile(t, repo, path)

	require.Error(t, svc.IngestFile(context.Background(), f.ID))

	got, err := repo.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "quota exceeded")
}

func TestIngestFileUnsupportedTypeMarksFailed(t *testing.T) {
	repo := testFileRepo(t)
	svc := NewService(repo, &fakeIndex{}, &fakeEmbedder{dims: 4})

	path := writeDoc(t, "report.pdf", "%PDF-1.4 ...")
	f := seedFile(t, repo, path)

	require.Error(t, svc.IngestFile(context.Background(), f.ID))

	got, err := repo.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestIngestFileEmbedsInBatches(t *testing.T) {
	repo := testFileRepo(t)
	index := &fakeIndex{}
	embedder := &fakeEmbedder{dims: 4}
	svc := NewService(repo, index, embedder)

	// enough text for well over embedBatchSize chunks at the default size
	var b strings.Builder
	for i := 0; i < 130; i++ {
		b.WriteString(strings.Repeat("filler sentence for chunking purposes. ", 30))
		b.WriteString("\n\n")
	}
	path := writeDoc(t, "big.txt", b.String())
	f := seedFile(t, repo, path)

	require.NoError(t, svc.IngestFile(context.Background(), f.ID))

	require.Greater(t, len(embedder.batches), 1)
	for _, batch := range embedder.batches {
		assert.LessOrEqual(t, len(batch), embedBatchSize)
	}
	assert.Greater(t, len(index.upserted), embedBatchSize)
}

func TestCleanupTasks(t *testing.T) {
	index := &fakeIndex{}
	svc := NewService(testFileRepo(t), index, &fakeEmbedder{dims: 4})

	require.NoError(t, svc.CleanupFile(context.Background(), "file-1"))
	require.NoError(t, svc.CleanupCompanion(context.Background(), "comp-1"))

	assert.Equal(t, []string{"file-1"}, index.deletedFile)
	assert.Equal(t, []string{"comp-1"}, index.deletedComp)
}

func TestAggregateStatus(t *testing.T) {
	assert.Equal(t, BaseEmpty, AggregateStatus(nil))
	assert.Equal(t, BaseProcessing, AggregateStatus([]File{
		{Status: StatusIndexed}, {Status: StatusProcessing},
	}))
	assert.Equal(t, BaseProcessing, AggregateStatus([]File{
		{Status: StatusUploaded},
	}))
	assert.Equal(t, BaseFailed, AggregateStatus([]File{
		{Status: StatusIndexed}, {Status: StatusFailed},
	}))
	assert.Equal(t, BaseReady, AggregateStatus([]File{
		{Status: StatusIndexed}, {Status: StatusIndexed},
	}))
}
