package companion_test

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/soulink/companion-backend/internal/chat"
	"github.com/soulink/companion-backend/internal/companion"
	"github.com/soulink/companion-backend/internal/knowledge"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&companion.Companion{}, &chat.Message{}, &knowledge.File{}))
	return db
}

type fakeVectorIndex struct {
	deleted []string
	err     error
}

func (f *fakeVectorIndex) DeleteByCompanion(ctx context.Context, companionID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, companionID)
	return nil
}

type fakeMemory struct {
	deleted []string
	err     error
}

func (f *fakeMemory) Delete(ctx context.Context, companionID string, userID uint64) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, companionID)
	return nil
}

func newTestService(t *testing.T) (*companion.Service, *gorm.DB, *fakeVectorIndex, *fakeMemory) {
	t.Helper()
	db := testDB(t)
	vectors := &fakeVectorIndex{}
	memory := &fakeMemory{}
	svc := companion.NewService(companion.NewRepo(db), vectors, memory)
	return svc, db, vectors, memory
}

func createTestCompanion(t *testing.T, svc *companion.Service, ownerID uint64) *companion.Companion {
	t.Helper()
	c, err := svc.Create(context.Background(), ownerID, companion.CreateInput{
		Name:         "Mira",
		Description:  "a calm mentor",
		Instructions: "You are a calm mentor.",
		Seed:         "Let's figure it out together.",
	})
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)
	return c
}

func TestCreateAndGet(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCompanion(t, svc, 1)

	got, err := svc.Get(context.Background(), 1, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mira", got.Name)
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCompanion(t, svc, 1)

	_, err := svc.Get(context.Background(), 2, c.ID)
	assert.ErrorIs(t, err, companion.ErrForbidden)

	_, err = svc.Get(context.Background(), 1, "no-such-id")
	assert.ErrorIs(t, err, companion.ErrNotFound)
}

func TestUpdatePartialFields(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCompanion(t, svc, 1)

	name := "Mira II"
	got, err := svc.Update(context.Background(), 1, c.ID, companion.UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Mira II", got.Name)
	// untouched fields survive
	assert.Equal(t, "You are a calm mentor.", got.Instructions)
}

func TestUpdateRejectsForeignCompanion(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCompanion(t, svc, 1)

	name := "hijacked"
	_, err := svc.Update(context.Background(), 2, c.ID, companion.UpdateInput{Name: &name})
	assert.ErrorIs(t, err, companion.ErrForbidden)
}

func TestDeleteCascades(t *testing.T) {
	svc, db, vectors, memory := newTestService(t)
	c := createTestCompanion(t, svc, 1)
	ctx := context.Background()

	require.NoError(t, db.Create(&chat.Message{
		CompanionID: c.ID, UserID: 1, Role: chat.RoleUser, Content: "hi",
	}).Error)
	require.NoError(t, db.Create(&knowledge.File{
		ID: "01J8ULIDULIDULIDULIDULIDFF", CompanionID: c.ID,
		FileName: "notes.txt", FilePath: "/tmp/none/notes.txt", Status: knowledge.StatusIndexed,
	}).Error)

	require.NoError(t, svc.Delete(ctx, 1, c.ID))

	assert.Equal(t, []string{c.ID}, vectors.deleted)
	assert.Equal(t, []string{c.ID}, memory.deleted)

	_, err := svc.Get(ctx, 1, c.ID)
	assert.ErrorIs(t, err, companion.ErrNotFound)

	var msgCount, fileCount int64
	require.NoError(t, db.Model(&chat.Message{}).Where("companion_id = ?", c.ID).Count(&msgCount).Error)
	require.NoError(t, db.Model(&knowledge.File{}).Where("companion_id = ?", c.ID).Count(&fileCount).Error)
	assert.Zero(t, msgCount)
	assert.Zero(t, fileCount)
}

func TestDeleteAbortsWhenVectorPurgeFails(t *testing.T) {
	svc, db, vectors, _ := newTestService(t)
	vectors.err = errors.New("index unreachable")
	c := createTestCompanion(t, svc, 1)

	err := svc.Delete(context.Background(), 1, c.ID)
	require.Error(t, err)

	// the relational row survives so the delete can be retried
	var count int64
	require.NoError(t, db.Model(&companion.Companion{}).Where("id = ?", c.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeleteToleratesMemoryFailure(t *testing.T) {
	svc, _, _, memory := newTestService(t)
	memory.err = errors.New("redis down")
	c := createTestCompanion(t, svc, 1)

	require.NoError(t, svc.Delete(context.Background(), 1, c.ID))

	_, err := svc.Get(context.Background(), 1, c.ID)
	assert.ErrorIs(t, err, companion.ErrNotFound)
}

func TestListScopedToOwner(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	createTestCompanion(t, svc, 1)
	createTestCompanion(t, svc, 1)
	createTestCompanion(t, svc, 2)

	mine, err := svc.List(context.Background(), 1, 0, 50)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := svc.List(context.Background(), 2, 0, 50)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}
