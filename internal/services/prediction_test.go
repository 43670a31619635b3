package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cropscan/apiserver/internal/inference"
	"github.com/cropscan/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePredictor struct {
	calls  int
	result inference.Result
	err    error
}

func (f *fakePredictor) Predict(context.Context, types.Upload) (inference.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeArchiver struct {
	filename string
	key      string
	err      error
}

func (f *fakeArchiver) ArchiveUpload(_ context.Context, filename, _ string, _ []byte) (string, error) {
	f.filename = filename
	return f.key, f.err
}

func TestPredictionService_SuccessArchivesAndPublishes(t *testing.T) {
	predictor := &fakePredictor{result: inference.Result{
		Status:     http.StatusOK,
		Prediction: types.Prediction{"disease": "Leaf Mold"},
	}}
	archive := &fakeArchiver{key: "uploads/2026/01/01/x-leaf.jpg"}
	publisher := &fakePublisher{}

	svc := NewPredictionService(predictor,
		WithUploadArchive(archive),
		WithPredictionEvents(publisher, "predictions"),
	)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	res, err := svc.Predict(context.Background(), types.Upload{Filename: "leaf.jpg", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, 1, predictor.calls)
	assert.Equal(t, "Leaf Mold", res.Prediction["disease"])
	assert.Equal(t, "leaf.jpg", archive.filename)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, "predictions", event.channel)
	assert.Equal(t, types.EventPredictionCompleted, event.eventType)
	payload, ok := event.payload.(types.PredictionCompletedPayload)
	require.True(t, ok)
	assert.Equal(t, archive.key, payload.ObjectKey)
	assert.Equal(t, fixed, payload.ReceivedAt)
	assert.Equal(t, http.StatusOK, payload.Status)
}

func TestPredictionService_UpstreamErrorSkipsSideEffects(t *testing.T) {
	predictor := &fakePredictor{err: inference.ErrUnavailable}
	archive := &fakeArchiver{}
	publisher := &fakePublisher{}

	svc := NewPredictionService(predictor, WithUploadArchive(archive), WithPredictionEvents(publisher, "predictions"))

	_, err := svc.Predict(context.Background(), types.Upload{Filename: "leaf.jpg", Data: []byte("x")})
	assert.ErrorIs(t, err, inference.ErrUnavailable)
	assert.Empty(t, archive.filename)
	assert.Empty(t, publisher.events)
}

func TestPredictionService_SideEffectFailuresAreIgnored(t *testing.T) {
	predictor := &fakePredictor{result: inference.Result{Status: http.StatusOK, Prediction: types.Prediction{}}}

	svc := NewPredictionService(predictor,
		WithUploadArchive(&fakeArchiver{err: errors.New("bucket gone")}),
		WithPredictionEvents(&fakePublisher{err: errors.New("broker down")}, "predictions"),
	)

	res, err := svc.Predict(context.Background(), types.Upload{Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, 1, predictor.calls)
}
