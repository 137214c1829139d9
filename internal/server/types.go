package server

import (
	"knnvote/internal/dataset"
	"knnvote/internal/knn"
)

// PredictRequest represents the request body for classifying one row
type PredictRequest struct {
	Features  dataset.FeatureVector `json:"features" binding:"required"`
	Strategy  string                `json:"strategy,omitempty"`
	Neighbors bool                  `json:"neighbors,omitempty"`
}

// PredictResponse represents the response body for a prediction
type PredictResponse struct {
	Label     bool                `json:"label"`
	Strategy  knn.Strategy        `json:"strategy"`
	Cached    bool                `json:"cached"`
	Neighbors []knn.DistanceEntry `json:"neighbors,omitempty"`
}

// EvaluateRequest represents the request body for scoring a labeled test set
type EvaluateRequest struct {
	Rows              []dataset.LabeledRow `json:"rows" binding:"required"`
	Strategy          string               `json:"strategy,omitempty"`
	Concurrency       int                  `json:"concurrency,omitempty"`
	CountErrorsAsMiss bool                 `json:"count_errors_as_miss,omitempty"`
}

// EvaluateResponse represents the response body for an evaluation
type EvaluateResponse struct {
	Strategy knn.Strategy       `json:"strategy"`
	Correct  int                `json:"correct"`
	Total    int                `json:"total"`
	Failed   int                `json:"failed"`
	Accuracy float64            `json:"accuracy"`
	Errors   []RowErrorResponse `json:"errors,omitempty"`
}

type RowErrorResponse struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
