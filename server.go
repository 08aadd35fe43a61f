package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"i4.energy/across/nbiot/at"
	"i4.energy/across/nbiot/modem"
	"i4.energy/across/nbiot/tcp"
)

// Server handles incoming HTTP requests for interacting with the
// configured modem instance
type Server struct {
	Logger *slog.Logger
	Modem  *modem.Modem
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /at", s.handleAT)
	mux.HandleFunc("POST /tcp/send", s.handleTCPSend)
	mux.ServeHTTP(w, r)
}

// ATResponse is the JSON form of an at.Response
type ATResponse struct {
	Echo    string   `json:"echo"`
	Body    []string `json:"body"`
	Success bool     `json:"success"`
	NoReply bool     `json:"no_reply,omitempty"`
}

func toATResponse(resp at.Response) ATResponse {
	body := resp.Body
	if body == nil {
		body = []string{}
	}
	return ATResponse{
		Echo:    resp.Echo,
		Body:    body,
		Success: resp.Success,
		NoReply: resp.NoReply(),
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	s.sendJSON(w, ErrorResponse{Message: message}, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Failed to encode response", "error", err)
	}
}

// statusFor maps modem errors to HTTP status codes
func statusFor(err error) int {
	var chErr *modem.ChannelError
	switch {
	case errors.Is(err, modem.ErrInvalidCommand),
		errors.Is(err, modem.ErrInvalidArgument),
		errors.Is(err, modem.ErrInvalidSocketID):
		return http.StatusBadRequest
	case errors.Is(err, tcp.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, modem.ErrRemoteRejected),
		errors.Is(err, modem.ErrParse):
		return http.StatusBadGateway
	case errors.Is(err, tcp.ErrAwaitTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &chErr),
		errors.Is(err, modem.ErrAlreadyClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleStatus runs every diagnostic query and returns the raw replies
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	queries := []struct {
		name  string
		query func(context.Context) (at.Response, error)
	}{
		{"signal_quality", s.Modem.SignalQuality},
		{"firmware_version", s.Modem.FirmwareVersion},
		{"registration_status", s.Modem.RegistrationStatus},
		{"pdp_status", s.Modem.PDPStatus},
		{"operator_info", s.Modem.OperatorInfo},
		{"connection_status", s.Modem.ConnectionStatus},
	}

	result := make(map[string]ATResponse, len(queries))
	for _, q := range queries {
		resp, err := q.query(r.Context())
		if err != nil {
			s.Logger.Error("Status query failed", "query", q.name, "error", err)
			s.sendError(w, err.Error(), statusFor(err))
			return
		}
		result[q.name] = toATResponse(resp)
	}

	s.sendJSON(w, result, http.StatusOK)
}

// handleAT executes a raw AT command
func (s *Server) handleAT(w http.ResponseWriter, r *http.Request) {
	type ATRequest struct {
		Command string `json:"command"`
	}

	var req ATRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.Modem.Execute(r.Context(), req.Command)
	if err != nil {
		s.Logger.Error("AT command failed", "error", err, "command", req.Command)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	s.sendJSON(w, toATResponse(resp), http.StatusOK)
}

// handleTCPSend opens a TCP connection on the modem, sends the payload and
// closes the socket again
func (s *Server) handleTCPSend(w http.ResponseWriter, r *http.Request) {
	type SendRequest struct {
		Host string `json:"host"`
		Port int    `json:"port"`
		Data string `json:"data"`
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Host == "" || req.Port == 0 || req.Data == "" {
		s.sendError(w, "'host', 'port' and 'data' fields are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	conn, err := tcp.New(ctx, s.Modem)
	if err != nil {
		s.Logger.Error("Failed to create socket", "error", err)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	err = conn.Connect(ctx, req.Host, req.Port)
	if err == nil {
		err = conn.Send(ctx, []byte(req.Data))
	}
	if closeErr := conn.Close(context.WithoutCancel(ctx)); closeErr != nil {
		s.Logger.Warn("Failed to close socket", "socket", conn.SocketID(), "error", closeErr)
	}
	if err != nil {
		s.Logger.Error("TCP send failed", "error", err, "host", req.Host, "port", req.Port)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	type SendResponse struct {
		SocketID int `json:"socket_id"`
		Sent     int `json:"sent"`
	}
	s.Logger.Info("TCP payload sent", "host", req.Host, "port", req.Port, "bytes", len(req.Data))
	s.sendJSON(w, SendResponse{SocketID: conn.SocketID(), Sent: len(req.Data)}, http.StatusOK)
}
