package server

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"knnvote/internal/cache"
	"knnvote/internal/config"
	"knnvote/internal/dataset"
	"knnvote/internal/evaluate"
	"knnvote/internal/knn"
	"knnvote/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Classifier is the prediction surface the server needs.
type Classifier interface {
	Predict(ctx context.Context, strategy knn.Strategy, query dataset.FeatureVector) (bool, error)
	Classify(ctx context.Context, strategy knn.Strategy, query dataset.FeatureVector) ([]knn.DistanceEntry, bool, error)
	Predictor(strategy knn.Strategy) evaluate.Predictor
	Closed() bool
}

type Server struct {
	router *gin.Engine
	clf    Classifier
	cache  *cache.PredictionCache
	addr   string
	log    *zap.SugaredLogger
}

// New creates a new server instance
func New(clf Classifier, conf *config.Config) *Server {
	s := &Server{
		router: gin.New(),
		clf:    clf,
		cache:  cache.NewPredictionCache(conf.Cache.Size),
		addr:   conf.Server.Addr,
		log:    logger.With("component", "server"),
	}
	s.router.Use(gin.Recovery(), s.accessLog())
	if conf.Server.RateLimit > 0 {
		burst := conf.Server.Burst
		if burst == 0 {
			burst = int(math.Ceil(conf.Server.RateLimit))
		}
		s.router.Use(rateLimit(rate.NewLimiter(rate.Limit(conf.Server.RateLimit), burst)))
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleHealthCheck())
	s.router.POST("/v1/predict", s.handlePredict())
	s.router.POST("/v1/evaluate", s.handleEvaluate())
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on the configured address until ctx ends, then drains
// open requests.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
