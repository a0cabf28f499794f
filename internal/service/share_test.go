package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/repository"
)

func TestShareEmail(t *testing.T) {
	mailer := &fakeMailer{enabled: true}
	svc := NewShareService(mailer, discardLogger())

	err := svc.Email(context.Background(), "u1", " Friend <friend@example.com> ", "line one\n<b>line two</b>")
	require.NoError(t, err)

	assert.Equal(t, "friend@example.com", mailer.to)
	assert.Equal(t, "<p>line one<br>&lt;b&gt;line two&lt;/b&gt;</p>", mailer.html)
	assert.Equal(t, "line one\n<b>line two</b>", mailer.text)
}

func TestShareEmail_Errors(t *testing.T) {
	ctx := context.Background()

	err := NewShareService(&fakeMailer{enabled: false}, discardLogger()).Email(ctx, "u1", "a@example.com", "hi")
	assert.ErrorIs(t, err, ErrEmailDisabled)

	svc := NewShareService(&fakeMailer{enabled: true}, discardLogger())
	assert.ErrorIs(t, svc.Email(ctx, "u1", "not-an-address", "hi"), apperror.ErrValidation)
	assert.ErrorIs(t, svc.Email(ctx, "u1", "a@example.com", "  "), apperror.ErrValidation)

	failing := NewShareService(&fakeMailer{enabled: true, err: errors.New("resend: 422")}, discardLogger())
	assert.ErrorIs(t, failing.Email(ctx, "u1", "a@example.com", "hi"), apperror.ErrUpstream)
}

func TestTranscribe(t *testing.T) {
	stt := &fakeSTT{text: "  hello from a voice note \n"}
	svc := NewTranscribeService(stt, discardLogger())

	text, err := svc.Transcribe(context.Background(), "u1", "../../recording.WEBM", bytes.NewReader([]byte("audio")))
	require.NoError(t, err)

	assert.Equal(t, "hello from a voice note", text)
	assert.Equal(t, "recording.WEBM", stt.filename)
	assert.Equal(t, []byte("audio"), stt.audio)
}

func TestTranscribe_Errors(t *testing.T) {
	ctx := context.Background()
	stt := &fakeSTT{}

	_, err := NewTranscribeService(stt, discardLogger()).Transcribe(ctx, "u1", "notes.txt", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrUnsupportedAudio)
	assert.Empty(t, stt.filename, "rejected before upload")

	failing := NewTranscribeService(&fakeSTT{err: errors.New("413")}, discardLogger())
	_, err = failing.Transcribe(ctx, "u1", "a.mp3", bytes.NewReader(nil))
	assert.ErrorIs(t, err, apperror.ErrUpstream)
}

func TestAnalyticsList(t *testing.T) {
	store := newFakeMetricRepo()
	svc := NewAnalyticsService(store)
	ctx := context.Background()

	_, err := svc.List(ctx, "u1", "LinkedIn", "Culture", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, repository.MetricFilter{
		Platform:    model.PlatformLinkedIn,
		Category:    model.CategoryCulture,
		ListOptions: repository.ListOptions{Limit: DefaultListLimit},
	}, store.filter)

	_, err = svc.List(ctx, "u1", "", "", 10, 5)
	require.NoError(t, err)
	assert.Equal(t, repository.MetricFilter{ListOptions: repository.ListOptions{Limit: 10, Offset: 5}}, store.filter)

	_, err = svc.List(ctx, "u1", "", "sports", 0, 0)
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = svc.List(ctx, "u1", "orkut", "", 0, 0)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
