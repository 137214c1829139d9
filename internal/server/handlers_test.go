package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"knnvote/internal/config"
	"knnvote/internal/dataset"
	"knnvote/internal/evaluate"
	"knnvote/internal/knn"
	pkgerrors "knnvote/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *knn.Classifier) {
	t.Helper()
	set, err := dataset.NewTrainingSet(
		[]dataset.FeatureVector{{"a", "x"}, {"b", "y"}, {"c", "z"}, {"d", "w"}, {"e", "v"}},
		[]bool{true, true, false, false, false},
	)
	require.NoError(t, err)
	clf, err := knn.New(set, 3, knn.WithWorkers(2), knn.WithLogger(zap.NewNop().Sugar()))
	require.NoError(t, err)
	t.Cleanup(func() { clf.Close() })

	conf, err := config.NewConfig(t.TempDir())
	require.NoError(t, err)
	if mutate != nil {
		mutate(conf)
	}
	server := New(clf, conf)
	require.NotNil(t, server)
	return server, clf
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(w, r)
	return w
}

func TestHandleHealthCheck(t *testing.T) {
	server, _ := setupTestServer(t, nil)
	w := doJSON(t, server, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandlePredict(t *testing.T) {
	server, _ := setupTestServer(t, nil)

	for _, strategy := range []string{"", "serial", "parallel"} {
		w := doJSON(t, server, http.MethodPost, "/v1/predict", PredictRequest{
			Features: dataset.FeatureVector{"a", "x"},
			Strategy: strategy,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp PredictResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Label)
		assert.Empty(t, resp.Neighbors)
	}

	// second identical request is answered from the cache
	w := doJSON(t, server, http.MethodPost, "/v1/predict", PredictRequest{
		Features: dataset.FeatureVector{"a", "x"},
		Strategy: "serial",
	})
	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.Equal(t, knn.Serial, resp.Strategy)
}

func TestHandlePredictNeighbors(t *testing.T) {
	server, _ := setupTestServer(t, nil)

	w := doJSON(t, server, http.MethodPost, "/v1/predict", PredictRequest{
		Features:  dataset.FeatureVector{"a", "x"},
		Neighbors: true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Label)
	assert.Equal(t, knn.Parallel, resp.Strategy)
	require.Len(t, resp.Neighbors, 3)
	assert.Equal(t, 0, resp.Neighbors[0].Index)
	assert.Equal(t, 0.0, resp.Neighbors[0].Value)
}

func TestHandlePredictBadRequests(t *testing.T) {
	server, _ := setupTestServer(t, nil)

	w := doJSON(t, server, http.MethodPost, "/v1/predict", map[string]any{"strategy": "serial"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, server, http.MethodPost, "/v1/predict", PredictRequest{
		Features: dataset.FeatureVector{"a", "x"},
		Strategy: "quantum",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlePredictAfterShutdown(t *testing.T) {
	server, clf := setupTestServer(t, nil)
	req := PredictRequest{Features: dataset.FeatureVector{"a", "x"}, Strategy: "serial"}

	w := doJSON(t, server, http.MethodPost, "/v1/predict", req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, server.cache.Len())

	require.NoError(t, clf.Close())

	// the label is still cached but the classifier is gone
	w = doJSON(t, server, http.MethodPost, "/v1/predict", req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	req.Neighbors = true
	w = doJSON(t, server, http.MethodPost, "/v1/predict", req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleEvaluate(t *testing.T) {
	server, _ := setupTestServer(t, nil)

	rows := []dataset.LabeledRow{
		{Features: dataset.FeatureVector{"a", "x"}, Label: true},
		{Features: dataset.FeatureVector{"e", "v"}, Label: false},
		{Features: dataset.FeatureVector{"b", "y"}, Label: false},
		{Features: dataset.FeatureVector{"d", "w"}, Label: false},
	}
	for _, concurrency := range []int{0, 4} {
		w := doJSON(t, server, http.MethodPost, "/v1/evaluate", EvaluateRequest{
			Rows:        rows,
			Strategy:    "parallel",
			Concurrency: concurrency,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp EvaluateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.Correct)
		assert.Equal(t, 4, resp.Total)
		assert.InDelta(t, 0.75, resp.Accuracy, 1e-9)
	}

	w := doJSON(t, server, http.MethodPost, "/v1/evaluate", EvaluateRequest{Rows: []dataset.LabeledRow{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// stubClassifier fails every prediction with err.
type stubClassifier struct {
	err   error
	calls atomic.Int32
}

func (s *stubClassifier) Predict(ctx context.Context, strategy knn.Strategy, q dataset.FeatureVector) (bool, error) {
	s.calls.Add(1)
	return false, s.err
}

func (s *stubClassifier) Classify(ctx context.Context, strategy knn.Strategy, q dataset.FeatureVector) ([]knn.DistanceEntry, bool, error) {
	s.calls.Add(1)
	return nil, false, s.err
}

func (s *stubClassifier) Closed() bool { return false }

func (s *stubClassifier) Predictor(strategy knn.Strategy) evaluate.Predictor {
	return func(ctx context.Context, q dataset.FeatureVector) (bool, error) {
		return s.Predict(ctx, strategy, q)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{pkgerrors.ErrDataShape, http.StatusBadRequest},
		{pkgerrors.ErrInvalidState, http.StatusServiceUnavailable},
		{pkgerrors.ErrCancelled, http.StatusRequestTimeout},
		{pkgerrors.ErrIncompleteDistances, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.err.Error(), func(t *testing.T) {
			conf, err := config.NewConfig(t.TempDir())
			require.NoError(t, err)
			server := New(&stubClassifier{err: tt.err}, conf)

			w := doJSON(t, server, http.MethodPost, "/v1/predict", PredictRequest{Features: dataset.FeatureVector{"a"}})
			assert.Equal(t, tt.want, w.Code)

			w = doJSON(t, server, http.MethodPost, "/v1/predict", PredictRequest{Features: dataset.FeatureVector{"a"}, Neighbors: true})
			assert.Equal(t, tt.want, w.Code)

			w = doJSON(t, server, http.MethodPost, "/v1/evaluate", EvaluateRequest{
				Rows: []dataset.LabeledRow{{Features: dataset.FeatureVector{"a"}, Label: true}},
			})
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestEvaluateCountErrorsAsMiss(t *testing.T) {
	conf, err := config.NewConfig(t.TempDir())
	require.NoError(t, err)
	stub := &stubClassifier{err: pkgerrors.ErrIncompleteDistances}
	server := New(stub, conf)

	w := doJSON(t, server, http.MethodPost, "/v1/evaluate", EvaluateRequest{
		Rows: []dataset.LabeledRow{
			{Features: dataset.FeatureVector{"a"}, Label: true},
			{Features: dataset.FeatureVector{"b"}, Label: false},
		},
		CountErrorsAsMiss: true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Correct)
	assert.Equal(t, 2, resp.Failed)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, 1, resp.Errors[1].Row)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestRateLimit(t *testing.T) {
	server, _ := setupTestServer(t, func(c *config.Config) {
		c.Server.RateLimit = 0.001
		c.Server.Burst = 2
	})

	assert.Equal(t, http.StatusOK, doJSON(t, server, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, server, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(t, server, http.MethodGet, "/", nil).Code)
}

func TestNeighborsRequestClassifiesOnce(t *testing.T) {
	conf, err := config.NewConfig(t.TempDir())
	require.NoError(t, err)
	stub := &stubClassifier{}
	server := New(stub, conf)

	w := doJSON(t, server, http.MethodPost, "/v1/predict", PredictRequest{
		Features:  dataset.FeatureVector{"a", "x"},
		Neighbors: true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), stub.calls.Load())
}
