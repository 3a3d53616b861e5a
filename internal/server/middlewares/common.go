package middlewares

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"
)

var (
	gzipExcludedPaths = []string{
		"/healthz",
	}
	gzipExcludedExtensions = []string{
		".png", ".gif", ".jpeg", ".jpg", ".webp", ".ico",
		".zip", ".tar", ".gz", ".bz2", ".rar", ".7z",
		".woff", ".woff2", ".ttf", ".otf",
	}
)

func Logger() gin.HandlerFunc {
	httpLogger := slog.Default().WithGroup("http")

	return slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	})
}

func GZIP() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.BestSpeed,
		gzip.WithExcludedPaths(gzipExcludedPaths),
		gzip.WithExcludedExtensions(gzipExcludedExtensions),
	)
}

// SecurityHeaders applies the standard hardening headers. TLS redirect is
// off because deployments commonly terminate TLS in front of the server.
func SecurityHeaders() gin.HandlerFunc {
	return secure.New(secure.Config{
		IsDevelopment:      false,
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		IENoOpen:           true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	})
}
