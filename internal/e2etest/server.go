package e2etest

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/camziny/z-fit-2.0/internal/logging"
)

// LogAddrKey is the log attribute carrying the address the server listens on.
const LogAddrKey = "addr"

// LogDsnKey is the log attribute carrying the read-write SQLite data source name.
const LogDsnKey = "sqlDsn"

// RunFunc starts a server and blocks until ctx is cancelled. It has the signature of cmd/web's run.
type RunFunc func(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error

// Server is an in-process server started by StartServer.
type Server struct {
	url    string
	client *Client
	db     *sql.DB
	stop   context.CancelCauseFunc
	done   chan struct{}
}

// StartServer runs run in the background and returns once the server answers /api/healthy. The server is shut down
// when the test ends.
//
// Server logs go to logSink, usually testhelpers.NewWriter(t). The listen address and the database DSN are picked up
// from the startup logs under LogAddrKey and LogDsnKey, so ZFIT_ADDR=localhost:0 and ZFIT_SQLITE_URL=:memory: work.
func StartServer(t *testing.T, logSink io.Writer, lookupEnv func(string) (string, bool), run RunFunc) (*Server, error) {
	ctx, stop := context.WithCancelCause(t.Context())
	done := make(chan struct{})
	t.Cleanup(func() {
		stop(nil)
		<-done
	})

	startup := make(chan slog.Attr, 2) //nolint:mnd // address and DSN.
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(logSink, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == LogAddrKey || a.Key == LogDsnKey {
				select {
				case startup <- a:
				default:
				}
			}
			return a
		},
	})))

	go func() {
		defer close(done)
		if err := run(ctx, logger, lookupEnv); err != nil {
			stop(err)
		}
	}()

	var addr, dsn string
	for addr == "" || dsn == "" {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("server stopped before it was ready: %w", context.Cause(ctx))
		case a := <-startup:
			if a.Key == LogAddrKey {
				addr = a.Value.String()
			} else {
				dsn = a.Value.String()
			}
		}
	}

	serverURL := "http://" + addr
	client, err := NewClient(serverURL, "localhost", "http://localhost:0")
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		return nil, fmt.Errorf("wait for ready: %w", err)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &Server{url: serverURL, client: client, db: db, stop: stop, done: done}, nil
}

// Client returns the client created at startup. Use NewClient for a second, independent visitor.
func (s *Server) Client() *Client {
	return s.client
}

func (s *Server) URL() string {
	return s.url
}

// CountRows returns the number of rows in table matching where, for asserting on stored state the API does not
// expose directly.
func (s *Server) CountRows(ctx context.Context, table, where string, args ...any) (int, error) {
	var n int
	//nolint:gosec // table and where come from test code.
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s rows: %w", table, err)
	}
	return n, nil
}
