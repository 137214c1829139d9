package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"knnvote/internal/evaluate"
	"knnvote/internal/knn"
	pkgerrors "knnvote/pkg/errors"
)

func (s *Server) handleHealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handlePredict() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PredictRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		strategy, err := knn.ParseStrategy(req.Strategy)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		if req.Neighbors {
			neighbors, label, err := s.clf.Classify(c.Request.Context(), strategy, req.Features)
			if err != nil {
				s.fail(c, err)
				return
			}
			c.JSON(http.StatusOK, PredictResponse{Label: label, Strategy: strategy, Neighbors: neighbors})
			return
		}

		// cached labels outlive the classifier, so check it is still open
		if s.clf.Closed() {
			s.fail(c, pkgerrors.ErrInvalidState)
			return
		}
		if label, ok := s.cache.Get(string(strategy), req.Features); ok {
			c.JSON(http.StatusOK, PredictResponse{Label: label, Strategy: strategy, Cached: true})
			return
		}
		label, err := s.clf.Predict(c.Request.Context(), strategy, req.Features)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.cache.Put(string(strategy), req.Features, label)
		c.JSON(http.StatusOK, PredictResponse{Label: label, Strategy: strategy})
	}
}

func (s *Server) handleEvaluate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EvaluateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		strategy, err := knn.ParseStrategy(req.Strategy)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		opts := []evaluate.Option{evaluate.WithConcurrency(req.Concurrency)}
		if req.CountErrorsAsMiss {
			opts = append(opts, evaluate.WithErrorPolicy(evaluate.CountAsMiss))
		}
		res, err := evaluate.Accuracy(c.Request.Context(), req.Rows, s.clf.Predictor(strategy), opts...)
		if err != nil {
			s.fail(c, err)
			return
		}

		resp := EvaluateResponse{
			Strategy: strategy,
			Correct:  res.Correct,
			Total:    res.Total,
			Failed:   res.Failed,
			Accuracy: res.Accuracy,
		}
		for _, rowErr := range res.Errors {
			resp.Errors = append(resp.Errors, RowErrorResponse{Row: rowErr.Row, Error: rowErr.Err.Error()})
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Errorw("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pkgerrors.ErrDataShape),
		errors.Is(err, pkgerrors.ErrUnknownStrategy),
		errors.Is(err, pkgerrors.ErrEmptyTestSet):
		return http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrCancelled):
		return http.StatusRequestTimeout
	case errors.Is(err, pkgerrors.ErrInvalidState):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
