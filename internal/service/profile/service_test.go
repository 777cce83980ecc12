package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/pkg/logger"
	"github.com/rowquest/rowquest-api/test/mocks"
)

type fakeUploader struct {
	objects   map[string]string
	deleted   []string
	uploadErr error
	next      int
}

func (f *fakeUploader) Upload(ctx context.Context, kind string, userID uint, filename, contentType string, body io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.next++
	url := fmt.Sprintf("https://cdn.test/%s/%d/%d", kind, userID, f.next)
	f.objects[url] = string(data)
	return url, nil
}

func (f *fakeUploader) Delete(ctx context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	delete(f.objects, url)
	return nil
}

func newFixture() (*Service, *fakeUploader, map[uint]*models.User) {
	users := map[uint]*models.User{
		1: {ID: 1, Username: "alice", AvatarURL: "https://cdn.test/avatars/1/old"},
		2: {ID: 2, Username: "bob"},
		3: {ID: 3, Username: "root", Role: models.RoleAdmin},
	}
	repo := &mocks.MockUserRepository{
		GetByIDFunc: func(id uint) (*models.User, error) {
			if u, ok := users[id]; ok {
				copied := *u
				return &copied, nil
			}
			return nil, apperrors.New(apperrors.NotFound, "users.get", "user not found")
		},
		UpdateAvatarFunc: func(userID uint, url string) error {
			users[userID].AvatarURL = url
			return nil
		},
	}
	uploader := &fakeUploader{objects: map[string]string{}}
	return NewServiceWithInterfaces(repo, uploader, 1024, logger.Nop()), uploader, users
}

func avatar(body string) AvatarUpload {
	return AvatarUpload{Filename: "me.png", ContentType: "image/png", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestUploadAvatar(t *testing.T) {
	svc, uploader, users := newFixture()

	user, err := svc.UploadAvatar(context.Background(), users[1], 1, avatar("png"))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.test/avatars/1/1", user.AvatarURL)
	assert.Equal(t, user.AvatarURL, users[1].AvatarURL)
	assert.Equal(t, "png", uploader.objects[user.AvatarURL])
	assert.Equal(t, []string{"https://cdn.test/avatars/1/old"}, uploader.deleted)
}

func TestUploadAvatar_Permissions(t *testing.T) {
	svc, _, users := newFixture()

	_, err := svc.UploadAvatar(context.Background(), users[2], 1, avatar("png"))
	assert.True(t, apperrors.Is(err, apperrors.Forbidden))

	_, err = svc.UploadAvatar(context.Background(), users[3], 2, avatar("png"))
	assert.NoError(t, err, "admins may change any avatar")
}

func TestUploadAvatar_Validation(t *testing.T) {
	svc, _, users := newFixture()

	tests := []struct {
		name   string
		upload AvatarUpload
	}{
		{"unsupported type", AvatarUpload{Filename: "me.gif", ContentType: "image/gif", Size: 3, Body: strings.NewReader("gif")}},
		{"empty", AvatarUpload{Filename: "me.png", ContentType: "image/png", Size: 0, Body: strings.NewReader("")}},
		{"too large", AvatarUpload{Filename: "me.png", ContentType: "image/png", Size: 4096, Body: strings.NewReader("x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadAvatar(context.Background(), users[1], 1, tt.upload)
			assert.True(t, apperrors.Is(err, apperrors.InvalidInput))
		})
	}
}

func TestUploadAvatar_UploadFailure(t *testing.T) {
	svc, uploader, users := newFixture()
	uploader.uploadErr = apperrors.Remote("storage.upload", errors.New("bucket missing"))

	_, err := svc.UploadAvatar(context.Background(), users[1], 1, avatar("png"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.RemoteCallFailed))
	assert.Equal(t, "https://cdn.test/avatars/1/old", users[1].AvatarURL)
}

func TestUploadAvatar_UnknownUser(t *testing.T) {
	svc, _, users := newFixture()

	_, err := svc.UploadAvatar(context.Background(), users[3], 99, avatar("png"))
	assert.True(t, apperrors.Is(err, apperrors.NotFound))
}

func TestNewServiceDefaultLimit(t *testing.T) {
	svc := NewServiceWithInterfaces(nil, nil, 0, logger.Nop())
	assert.Equal(t, int64(DefaultMaxAvatarBytes), svc.MaxBytes())
}
