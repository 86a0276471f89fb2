package elastic

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/eslayer/internal/metrics"
)

// eslogger adapts zap to the client transport logger and records round trip metrics.
type eslogger struct {
	logger *zap.Logger
}

func (e *eslogger) LogRoundTrip(request *http.Request, response *http.Response, err error, start time.Time, duration time.Duration) error {
	const logMessage = "engine request"
	logFn := e.logger.Debug
	fields := []zap.Field{zap.Time("start", start), zap.Duration("duration", duration)}

	method := "unknown"
	if request != nil {
		method = request.Method
		fields = append(fields,
			zap.String("method", request.Method),
			zap.String("path", request.URL.Path),
		)
	} else {
		logFn = e.logger.Warn
	}

	status := "none"
	if response != nil {
		status = strconv.Itoa(response.StatusCode)
		fields = append(fields, zap.Int("status", response.StatusCode))
	} else {
		logFn = e.logger.Warn
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		logFn = e.logger.Error
	}

	metrics.EngineRequestDuration.WithLabelValues(method, status).Observe(duration.Seconds())
	logFn(logMessage, fields...)
	return nil
}

func (e *eslogger) RequestBodyEnabled() bool { return false }

func (e *eslogger) ResponseBodyEnabled() bool { return false }
