// Package apiserver exposes the analysis over HTTP.
package apiserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alexliesenfeld/health"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gopkg.in/tomb.v2"

	"github.com/crowdsecurity/go-cs-lib/trace"

	"github.com/crowdsecurity/sqlitrace/pkg/analysis"
	"github.com/crowdsecurity/sqlitrace/pkg/cache"
	"github.com/crowdsecurity/sqlitrace/pkg/logging"
	"github.com/crowdsecurity/sqlitrace/pkg/metrics"
	"github.com/crowdsecurity/sqlitrace/pkg/report"
	"github.com/crowdsecurity/sqlitrace/pkg/sqlisig"
	"github.com/crowdsecurity/sqlitrace/pkg/stconfig"
)

const shutdownTimeout = 5 * time.Second

type APIServer struct {
	URL            string
	router         *gin.Engine
	httpServer     *http.Server
	analyzer       *analysis.Analyzer
	results        *cache.Cache[report.View]
	maxUploadSize  int64
	logger         *log.Logger
	httpServerTomb tomb.Tomb
}

func isBrokenConnection(maybeError any) bool {
	err, ok := maybeError.(error)
	if !ok {
		return false
	}

	var netOpError *net.OpError
	if errors.As(err, &netOpError) {
		var syscallError *os.SyscallError
		if errors.As(netOpError.Err, &syscallError) {
			msg := strings.ToLower(syscallError.Error())
			if strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer") {
				return true
			}
		}
	}

	return errors.Is(err, http.ErrAbortHandler)
}

func recoverFromPanic(c *gin.Context) {
	err := recover()
	if err == nil {
		return
	}

	if isBrokenConnection(err) {
		log.Warningf("client %s disconnected: %s", c.ClientIP(), err)
		c.Abort()

		return
	}

	log.Warningf("client %s error: %s", c.ClientIP(), err)

	filename, werr := trace.WriteStackTrace(err)
	if werr != nil {
		log.Errorf("also while writing stacktrace: %s", werr)
	}

	log.Warningf("stacktrace written to %s, please join to your issue", filename)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
}

// CustomRecoveryWithWriter returns a middleware that recovers from any panics and writes a 500 if there was one.
func CustomRecoveryWithWriter() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recoverFromPanic(c)
		c.Next()
	}
}

func newHealthChecker(catalog *sqlisig.Catalog) health.Checker {
	return health.NewChecker(
		health.WithCacheDuration(time.Second),
		health.WithTimeout(5*time.Second),
		health.WithCheck(health.Check{
			Name: "catalog",
			Check: func(_ context.Context) error {
				if len(catalog.Families()) == 0 {
					return errors.New("no signature family enabled")
				}

				return nil
			},
		}),
		// uploads are spooled to the temporary directory
		health.WithCheck(health.Check{
			Name: "spool",
			Check: func(_ context.Context) error {
				f, err := os.CreateTemp("", "sqlitrace-health-*")
				if err != nil {
					return err
				}

				f.Close()

				return os.Remove(f.Name())
			},
		}),
	)
}

// NewServer sets up the gin router serving the analysis, health and metrics
// endpoints. It does not listen yet, see Run.
func NewServer(cfg *stconfig.Config, catalog *sqlisig.Catalog) (*APIServer, error) {
	if catalog == nil {
		return nil, errors.New("a signature catalog is required")
	}

	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.ForwardedByClientIP = false

	clog := logging.CreateAccessLogger(cfg.Common, 0)

	gin.DefaultErrorWriter = clog.WriterLevel(log.ErrorLevel)
	gin.DefaultWriter = clog.Writer()

	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s %q %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Page or Method not found"})
	})
	router.Use(CustomRecoveryWithWriter())
	// promhttp already compresses its output
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	router.Use(requestID())

	results, err := cache.New[report.View](cache.CacheCfg{
		Name:     "results",
		Size:     cfg.API.Cache.Size,
		TTL:      cfg.API.Cache.TTL,
		Strategy: cfg.API.Cache.Strategy,
	})
	if err != nil {
		return nil, fmt.Errorf("while creating result cache: %w", err)
	}

	s := &APIServer{
		URL:           cfg.API.ListenURI,
		router:        router,
		analyzer:      analysis.New(catalog, metrics.OriginAPI),
		results:       results,
		maxUploadSize: cfg.API.MaxUploadSize,
		logger:        clog,
	}

	router.GET("/health", gin.WrapF(health.NewHandler(newHealthChecker(catalog))))

	if cfg.API.EnableMetrics != nil && *cfg.API.EnableMetrics {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return nil, fmt.Errorf("while registering metrics: %w", err)
		}

		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/v1")

	if cfg.API.RateLimit > 0 {
		v1.Use(rateLimiter(cfg.API.RateLimit, cfg.API.RateBurst))
	}

	v1.POST("/analyze", s.analyze)

	return s, nil
}

func (s *APIServer) Router() *gin.Engine {
	return s.router
}

// Run listens on s.URL and serves until ctx is cancelled or the server fails.
// If apiReady is not nil, it receives a value once the listener is open;
// s.URL then holds the actual address.
func (s *APIServer) Run(ctx context.Context, apiReady chan bool) error {
	defer trace.CatchPanic("sqlitrace/api")

	listener, err := net.Listen("tcp", s.URL)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.URL, err)
	}

	s.URL = listener.Addr().String()

	s.httpServer = &http.Server{
		Addr:              s.URL,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.httpServerTomb.Go(func() error {
		log.Infof("sqlitrace API listening on %s", s.URL)

		err := s.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	s.httpServerTomb.Go(func() error {
		select {
		case <-ctx.Done():
		case <-s.httpServerTomb.Dying():
		}

		log.Info("Shutting down API server")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(sctx); err != nil {
			return fmt.Errorf("while shutting down http server: %w", err)
		}

		return nil
	})

	if apiReady != nil {
		apiReady <- true
	}

	err = s.httpServerTomb.Wait()

	s.Close()

	if err != nil {
		return fmt.Errorf("API server stopped with error: %w", err)
	}

	return nil
}

// Close releases the writers given to gin.
func (s *APIServer) Close() {
	if pipe, ok := gin.DefaultErrorWriter.(*io.PipeWriter); ok {
		pipe.Close()
	}

	if pipe, ok := gin.DefaultWriter.(*io.PipeWriter); ok {
		pipe.Close()
	}
}
