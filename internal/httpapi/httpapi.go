// Package httpapi implements the HTTP transport's server side: the
// synchronous ingestion route of spec.md §4.D, a health endpoint, and the
// JWT auth middleware referenced by §6's HTTP transport configuration.
// Routing follows the teacher's comp/api convention of a gorilla/mux
// router with one handler per route registered in a constructor.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/scouter-ml/scouter/internal/types"
	"go.uber.org/zap"
)

// RecordSink is the narrow surface the ingest route needs: dispatch a
// decoded batch to the Record Writer.
type RecordSink interface {
	WriteBatch(ctx context.Context, records types.ServerRecords) error
}

// Server wires the ingestion and health routes behind JWT auth.
type Server struct {
	router *mux.Router
	sink   RecordSink
	log    *zap.Logger
}

func New(sink RecordSink, log *zap.Logger, jwtSecret []byte) *Server {
	s := &Server{router: mux.NewRouter(), sink: sink, log: log}

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	ingest := s.router.PathPrefix("/drift").Subrouter()
	ingest.Use(authMiddleware(jwtSecret, log))
	ingest.HandleFunc("", s.handleIngest).Methods(http.MethodPost)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleIngest decodes the request body into ServerRecords and dispatches
// it synchronously, per spec.md §4.D's "HTTP: ingestion is synchronous"
// contract.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	limited := http.MaxBytesReader(w, r.Body, types.MaxMessageBytes)
	var records types.ServerRecords
	if err := json.NewDecoder(limited).Decode(&records); err != nil {
		writeError(w, http.StatusBadRequest, "malformed ServerRecords payload: "+err.Error())
		return
	}

	if err := s.sink.WriteBatch(r.Context(), records); err != nil {
		s.log.Error("http ingest: write failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to persist records")
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{Status: "error", Message: message})
}

// authMiddleware validates a bearer JWT on every request, per the HTTP
// transport's auth_token configuration of spec.md §6.
func authMiddleware(secret []byte, log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r.Header.Get("Authorization"))
			if tokenString == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			_, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil {
				log.Warn("http ingest: rejected token", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
