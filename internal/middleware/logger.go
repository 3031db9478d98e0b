package middleware

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "requestID"
)

var appLogger *log.Logger

// InitLogger sends the standard logger to stdout and a rotating file in logDir.
func InitLogger(logDir string) (io.Closer, error) {
	absLogDir, err := filepath.Abs(logDir)
	if err != nil {
		absLogDir = logDir
	}
	if err := os.MkdirAll(absLogDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", absLogDir, err)
	}

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(absLogDir, "server.log"),
		MaxSize:    10, // MB
		MaxBackups: 30,
		MaxAge:     30, // days
		Compress:   true,
		LocalTime:  true,
	}

	out := io.MultiWriter(os.Stdout, logFile)
	appLogger = log.New(out, "", log.LstdFlags)
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags)

	appLogger.Printf("[INFO] Logger initialized, log file: %s", logFile.Filename)
	return logFile, nil
}

func LogInfo(format string, v ...interface{}) {
	logf("[INFO] "+format, v...)
}

func LogError(format string, v ...interface{}) {
	logf("[ERROR] "+format, v...)
}

func logf(format string, v ...interface{}) {
	if appLogger != nil {
		appLogger.Printf(format, v...)
		return
	}
	log.Printf(format, v...)
}

// RequestLoggerMiddleware tags each request with an ID (reusing a valid
// incoming X-Request-ID) and logs method, URL, status and latency.
func RequestLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		fullURL := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			fullURL += "?" + c.Request.URL.RawQuery
		}

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		if status >= http.StatusBadRequest {
			LogError("%s %s | status=%d | latency=%v | request_id=%s | errors=%s",
				c.Request.Method, fullURL, status, latency, requestID, c.Errors.String())
			return
		}
		LogInfo("%s %s | status=%d | latency=%v | request_id=%s",
			c.Request.Method, fullURL, status, latency, requestID)
	}
}
