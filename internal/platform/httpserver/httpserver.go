// Package httpserver builds the fedlearn HTTP server from its config.
package httpserver

import (
	"net/http"
	"time"

	"fedlearn/internal/platform/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 2 * time.Minute
	// writeGrace leaves room to write the response of a request that used
	// its whole RequestTimeout, such as a synchronous training run.
	writeGrace = 30 * time.Second
	// minBodyRate is the slowest upload accepted, in bytes per second.
	minBodyRate = 64 << 10
)

// New returns a server whose body read deadline scales with the upload
// limit and whose write deadline outlasts the request timeout.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout(cfg.MaxUploadBytes),
		WriteTimeout:      cfg.RequestTimeout + writeGrace,
		IdleTimeout:       idleTimeout,
	}
}

func readTimeout(maxUploadBytes int64) time.Duration {
	return readHeaderTimeout + time.Duration(maxUploadBytes/minBodyRate+1)*time.Second
}
