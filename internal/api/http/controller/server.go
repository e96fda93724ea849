package controller

import (
	"context"
	"errors"
	"html/template"
	"net"
	"net/http"
	"strconv"

	"github.com/oshokin/sos-laser/internal/actuator"
	"github.com/oshokin/sos-laser/internal/dispatch"
	"github.com/oshokin/sos-laser/internal/logger"
)

// Routes served by the controller.
const (
	RouteRoot   = "/"
	RouteSignal = "/sos"
	RouteTest   = "/test"
	RouteStatus = "/status"
)

// notFoundBody is the plain-text body for unknown paths.
const notFoundBody = "not found"

// Service abstracts the dispatcher the transport depends on.
type Service interface {
	Dispatch(ctx context.Context, req dispatch.Request, ack dispatch.AckFunc) error
}

// FaultFunc is called when actuation fails at the hardware level.
type FaultFunc func(err error)

// Server implements the controller HTTP API.
type Server struct {
	// service executes commands.
	service Service
	// ssid is shown on the control page.
	ssid string
	// onFault escalates actuator faults to the process supervisor.
	onFault FaultFunc
}

// indexPage is the control page with the two action links.
//
//nolint:gochecknoglobals // Parsed once at startup.
var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>SOS Laser</title></head>
<body><h1>SOS Laser Controller</h1>
<p><a href="/sos"><button style="padding:20px;font-size:18px;">TRIGGER SOS</button></a></p>
<p><a href="/test"><button style="padding:20px;font-size:18px;">TEST LASER</button></a></p>
<p>Access point: {{.}}</p>
</body></html>
`))

// NewServer wires the provided service into an HTTP handler.
func NewServer(service Service, ssid string, onFault FaultFunc) *Server {
	return &Server{
		service: service,
		ssid:    ssid,
		onFault: onFault,
	}
}

// CommandFor resolves a request path to a dispatcher command.
func CommandFor(path string) dispatch.Command {
	switch path {
	case RouteSignal:
		return dispatch.TriggerSignal
	case RouteTest:
		return dispatch.TriggerTest
	case RouteStatus:
		return dispatch.QueryStatus
	default:
		return dispatch.Unrecognized
	}
}

// ServeHTTP answers every method on every path.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithFields(r.Context(), map[string]any{
		"path":       r.URL.Path,
		"user_agent": r.UserAgent(),
	})

	if r.URL.Path == RouteRoot {
		s.index(ctx, w)

		return
	}

	var (
		ack = &responseAck{w: w}
		req = dispatch.Request{
			Command:  CommandFor(r.URL.Path),
			ClientIP: clientIP(r.RemoteAddr),
		}
	)

	err := s.service.Dispatch(ctx, req, ack.deliver)

	switch {
	case err == nil:
	case errors.Is(err, actuator.ErrActuatorFault):
		logger.ErrorKV(ctx, "Actuator fault", "error", err)

		if !ack.sent {
			http.Error(w, "actuator fault", http.StatusInternalServerError)
		}

		if s.onFault != nil {
			s.onFault(err)
		}
	case errors.Is(err, dispatch.ErrTransportFailure):
		logger.DebugKV(ctx, "Client went away before the acknowledgement", "error", err)
	default:
		logger.ErrorKV(ctx, "Command failed", "error", err)

		if !ack.sent {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

// index renders the control page.
func (s *Server) index(ctx context.Context, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := indexPage.Execute(w, s.ssid); err != nil {
		logger.WarnKV(ctx, "Render control page", "error", err)
	}
}

// responseAck writes acknowledgements to an http.ResponseWriter.
type responseAck struct {
	// w is the response being written.
	w http.ResponseWriter
	// sent is set once headers went out.
	sent bool
}

// deliver writes ack with an explicit length and flushes it, so the client
// holds a complete response while a signal is still running.
func (a *responseAck) deliver(_ context.Context, ack *dispatch.Ack) error {
	var (
		contentType = "application/json"
		status      = http.StatusOK
		body        []byte
	)

	if ack.NotFound {
		contentType = "text/plain; charset=utf-8"
		status = http.StatusNotFound
		body = []byte(notFoundBody)
	} else {
		var err error

		body, err = ack.Payload.MarshalJSON()
		if err != nil {
			return err
		}
	}

	header := a.w.Header()
	header.Set("Content-Type", contentType)
	header.Set("Content-Length", strconv.Itoa(len(body)))
	a.w.WriteHeader(status)
	a.sent = true

	if _, err := a.w.Write(body); err != nil {
		return err
	}

	return http.NewResponseController(a.w).Flush()
}

// clientIP strips the port from a remote address.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}

	return host
}
