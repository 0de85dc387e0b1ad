package http

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second

	maxUsernameLength = 50

	// Assigned participant ids fall into the same range the join flow
	// has always used.
	userIDMin = 100
	userIDMax = 100000
)

var (
	ErrUnexpected = errors.New("unexpected server error")

	errUsernameEmpty   = errors.New("username cannot be empty")
	errUsernameTooLong = errors.New("username cannot be longer than 50 characters")
	errRoomID          = errors.New("room ID must be greater than 0")
)

// RoomInfo exposes the registry's room occupancy to the join API.
type RoomInfo interface {
	Participants(roomID int64) int
}

type JoinRequest struct {
	Username string `json:"username"`
	RoomID   int64  `json:"room_id"`
}

type JoinData struct {
	RoomID       int64  `json:"room_id"`
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	Participants int    `json:"participants"`
}

type GenericResponse struct {
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Server struct {
	logger zerolog.Logger
	rooms  RoomInfo
	*http.Server
}

type Config struct {
	Logger     *zerolog.Logger
	RoomInfo   RoomInfo
	ListenAddr string
}

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger: cfg.Logger.With().Str("component", "api-server").Logger(),
		rooms:  cfg.RoomInfo,
	}

	r := http.NewServeMux()
	r.HandleFunc("POST /api/join", srv.joinChat)
	r.HandleFunc("GET /healthz", healthHandler)
	r.HandleFunc("OPTIONS /", corsHandler)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}
	return srv
}

func corsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.WriteHeader(http.StatusNoContent)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("chatrelay is running"))
}

// joinChat validates the join form and hands out a random participant id.
// The caller takes the id to the websocket endpoint; no state is created
// here, any positive room id is a valid (possibly new) room.
func (srv *Server) joinChat(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	var (
		body    []byte
		joinReq JoinRequest
	)
	body, _ = io.ReadAll(r.Body)
	defer func() {
		_ = r.Body.Close()
	}()
	if err := json.Unmarshal(body, &joinReq); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	srv.logger.Trace().Any("request", joinReq).Msg("got join request")

	joinReq.Username = strings.TrimSpace(joinReq.Username)
	if err := validateJoin(joinReq); err != nil {
		b, errJ := json.Marshal(&GenericResponse{Error: err.Error()})
		if errJ != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeBytes(w, http.StatusBadRequest, b)
		return
	}

	data := JoinData{
		RoomID:       joinReq.RoomID,
		UserID:       assignUserID(),
		Username:     joinReq.Username,
		Participants: srv.rooms.Participants(joinReq.RoomID),
	}
	b, err := json.Marshal(&GenericResponse{Message: "OK", Data: data})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeBytes(w, http.StatusOK, b)
}

func validateJoin(req JoinRequest) error {
	if req.Username == "" {
		return errUsernameEmpty
	}
	if utf8.RuneCountInString(req.Username) > maxUsernameLength {
		return errUsernameTooLong
	}
	if req.RoomID <= 0 {
		return errRoomID
	}
	return nil
}

// assignUserID draws a participant id from uuid randomness. Ids are not
// guaranteed unique; a collision within a room replaces the older session.
func assignUserID() int64 {
	id := uuid.New()
	n := binary.BigEndian.Uint64(id[:8])
	return userIDMin + int64(n%(userIDMax-userIDMin+1))
}

func writeBytes(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}
