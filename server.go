package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"i4.energy/across/idpgw/journal"
	"i4.energy/across/idpgw/modem"
	"i4.energy/across/idpgw/twin"
)

// Server exposes the twin and the message journal over HTTP.
type Server struct {
	Logger  *slog.Logger
	Device  Device
	Gateway *Gateway
	// Journal may be nil when the history is disabled
	Journal *journal.Journal
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsPingInterval = 30 * time.Second

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ws/events", s.handleEvents)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(2 * time.Minute))

		r.Get("/state", s.handleState)
		r.Post("/messages", s.handleSend)
		r.Delete("/mo/{name}", s.handleCancel)
		r.Get("/journal", s.handleJournal)
		r.Get("/journal/{id}", s.handleJournalRecord)
		r.Get("/location", s.handleLocation)
		r.Put("/tracking", s.handleTracking)
		r.Get("/registers/{reg}", s.handleReadRegister)
		r.Put("/registers/{reg}", s.handleWriteRegister)
		r.Post("/command", s.handleCommand)
		r.Get("/time", s.handleTime)
	})
	return r
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]any{
		"error": message,
		"code":  status,
	})
}

// sendError maps err to a status code and writes it.
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var me *modem.ModemError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, twin.ErrInvalidMessage),
		errors.Is(err, twin.ErrUnknownRegister),
		errors.Is(err, twin.ErrReadOnlyRegister),
		errors.Is(err, twin.ErrRegisterRange),
		errors.Is(err, modem.ErrEmptyCommand),
		errors.Is(err, modem.ErrQuietUnsupported):
		status = http.StatusBadRequest
	case errors.Is(err, twin.ErrUnknownMessage), errors.Is(err, journal.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, twin.ErrNotReady), errors.Is(err, twin.ErrStopped), errors.Is(err, modem.ErrBusy):
		status = http.StatusServiceUnavailable
	case errors.Is(err, modem.ErrTimeout), errors.Is(err, twin.ErrLocationTimeout):
		status = http.StatusGatewayTimeout
	case errors.As(err, &me):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.Logger.Error("Request failed", "error", err, "path", r.URL.Path)
	}
	errorResponse(w, status, err.Error())
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.Device.Snapshot(r.Context())
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, state)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := decode(r, &req); err != nil {
		s.sendError(w, r, err)
		return
	}
	name, err := s.Gateway.Send(r.Context(), req)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.Logger.Info("MO message queued", "name", name, "sin", req.SIN)
	jsonResponse(w, http.StatusAccepted, map[string]string{"name": name})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.Device.CancelMessage(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		errorResponse(w, http.StatusNotFound, "journal disabled")
		return
	}
	q := r.URL.Query()
	f := journal.Filter{Direction: q.Get("direction")}
	var err error
	if v := q.Get("sin"); v != "" {
		var sin int
		if sin, err = strconv.Atoi(v); err == nil {
			f.SIN = &sin
		}
	}
	if v := q.Get("since"); v != "" && err == nil {
		f.Since, err = time.Parse(time.RFC3339, v)
	}
	if v := q.Get("until"); v != "" && err == nil {
		f.Until, err = time.Parse(time.RFC3339, v)
	}
	if v := q.Get("limit"); v != "" && err == nil {
		f.Limit, err = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" && err == nil {
		f.Offset, err = strconv.Atoi(v)
	}
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	records, total, err := s.Journal.List(r.Context(), f)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"records": records,
		"total":   total,
	})
}

func (s *Server) handleJournalRecord(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		errorResponse(w, http.StatusNotFound, "journal disabled")
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid id")
		return
	}
	rec, err := s.Journal.Get(r.Context(), uint(id))
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	age := time.Duration(0)
	if v := r.URL.Query().Get("age"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		age = d
	}
	sentences, err := s.Device.Location(r.Context(), age)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"nmea": sentences})
}

func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Interval string `json:"interval"`
	}
	if err := decode(r, &req); err != nil {
		s.sendError(w, r, err)
		return
	}
	interval, err := time.ParseDuration(req.Interval)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Device.SetTracking(r.Context(), interval); err != nil {
		s.sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReadRegister(w http.ResponseWriter, r *http.Request) {
	n, err := twin.ParseRegisterName(chi.URLParam(r, "reg"))
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	v, err := s.Device.ReadRegister(r.Context(), n)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"register": n, "value": v})
}

func (s *Server) handleWriteRegister(w http.ResponseWriter, r *http.Request) {
	n, err := twin.ParseRegisterName(chi.URLParam(r, "reg"))
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	var req struct {
		Value int  `json:"value"`
		Save  bool `json:"save"`
	}
	if err := decode(r, &req); err != nil {
		s.sendError(w, r, err)
		return
	}
	if err := s.Device.WriteRegister(r.Context(), n, req.Value, req.Save); err != nil {
		s.sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
		Timeout string `json:"timeout,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		s.sendError(w, r, err)
		return
	}
	var opts []modem.Option
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		opts = append(opts, modem.WithTimeout(d))
	}
	res, err := s.Device.Command(r.Context(), req.Command, opts...)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"command":  res.Command,
		"lines":    res.Lines,
		"code":     res.Code,
		"attempts": res.Attempts,
		"latency":  res.Latency.String(),
	})
}

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Device.UTC(r.Context())
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]time.Time{"utc": ts})
}

// handleEvents streams twin events to a websocket client until either side
// goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := s.Device.Subscribe(100)
	defer cancel()

	// reader detects the close frame
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				s.Logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
