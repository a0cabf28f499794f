package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/repository"
)

var errDisk = errors.New("disk I/O error")

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		conn.Close()
	})
	return wrap(conn), mock
}

func TestListDuePosts_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT .+ FROM scheduled_posts\s+WHERE posted = 0`).WillReturnError(errDisk)

	_, err := db.ListDuePosts(context.Background(), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, errDisk)
	assert.False(t, errors.Is(err, apperror.ErrNotFound))
}

func TestMarkPosted_ExecError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE scheduled_posts`).
		WithArgs("remote-9", sqlmock.AnyArg(), "p1").
		WillReturnError(errDisk)

	err := db.MarkPosted(context.Background(), "p1", "remote-9")
	assert.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), "p1")
}

func TestUpsertToken_ExecError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`INSERT INTO social_tokens`).WillReturnError(errDisk)

	err := db.UpsertToken(context.Background(), &model.SocialToken{
		UserID: "u1", Platform: model.PlatformLinkedIn, AccessToken: "a",
	})
	assert.ErrorIs(t, err, errDisk)
}

func TestUpsertMetric_ScanError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`INSERT INTO post_metrics`).WillReturnError(errDisk)

	m := &model.PostMetric{UserID: "u1", Platform: model.PlatformTwitter, PlatformPostID: "1"}
	err := db.UpsertMetric(context.Background(), m)
	assert.ErrorIs(t, err, errDisk)
	assert.Empty(t, m.ID)
}

func TestListScheduledPosts_RowError(t *testing.T) {
	db, mock := newMockDB(t)
	now := formatTime(time.Now())
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "content", "platform", "scheduled_for", "posted",
		"platform_post_id", "last_error", "created_at", "updated_at",
	}).
		AddRow("p1", "u1", "hi", "twitter", now, false, "", "", now, now).
		RowError(0, errDisk)
	mock.ExpectQuery(`SELECT .+ FROM scheduled_posts`).WillReturnRows(rows)

	_, err := db.ListScheduledPosts(context.Background(), "u1", repository.ListOptions{})
	assert.ErrorIs(t, err, errDisk)
}

func TestDeleteToken_RowsAffectedError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`DELETE FROM social_tokens`).
		WillReturnResult(sqlmock.NewErrorResult(errDisk))

	err := db.DeleteToken(context.Background(), "u1", model.PlatformTwitter)
	assert.ErrorIs(t, err, errDisk)
}
