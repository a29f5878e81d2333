/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/Seednode/tandem/session"
)

const (
	maxMessageSize = 4096
	qrSize         = 320
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsSink is the write half of a participant's websocket.
type wsSink struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *wsSink) WriteText(data []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return err
	}

	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// writeError sends the terminal error frame. The connection is being dropped
// either way, so the write result is ignored.
func (s *wsSink) writeError(err error) {
	_ = s.WriteText(session.ErrorFrame(err))
}

func (s *wsSink) close(code int, text string) {
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
	_ = s.conn.Close()
}

func serveGame(cfg *Config, game *session.Session, logger *zap.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		role, err := session.ParseRole(ps.ByName("locale"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("upgrade failed", zap.String("remote", realIP(r)), zap.Error(err))
			return
		}

		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Time{})

		play(cfg, game, role, conn, logger.With(
			zap.String("conn", uuid.NewString()),
			zap.Stringer("role", role),
			zap.String("remote", realIP(r)),
		))
	}
}

// play runs one participant's connection from registration until it closes.
func play(cfg *Config, game *session.Session, role session.Role, conn *websocket.Conn, logger *zap.Logger) {
	sink := &wsSink{conn: conn, timeout: cfg.writeTimeout}

	logger.Debug("joining")

	displaced, err := game.Register(role, sink)
	if err != nil {
		logger.Debug("closing connection", zap.Error(err))
		sink.writeError(err)
		_ = conn.Close()
		return
	}

	if prev, ok := displaced.(*wsSink); ok {
		logger.Debug("closing superseded connection")
		prev.close(websocket.ClosePolicyViolation, "superseded by a newer connection")
	}

	logger.Debug("joined")

	err = readRequests(game, role, conn, logger)

	defer conn.Close()

	if !game.Release(role, sink) {
		logger.Debug("left after being superseded")
		return
	}

	logger.Debug("left")

	if err != nil {
		logger.Debug("closing connection", zap.Error(err))
		sink.writeError(err)
	}
}

// readRequests applies inbound requests until the peer sends a close frame
// (nil) or something goes wrong (non-nil). A connection dropped without a
// close frame is reported by gorilla as CloseAbnormalClosure and counts as
// a transport error.
func readRequests(game *session.Session, role session.Role, conn *websocket.Conn, logger *zap.Logger) error {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			var closed *websocket.CloseError
			if errors.As(err, &closed) && closed.Code != websocket.CloseAbnormalClosure {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		if kind != websocket.TextMessage || len(data) == 0 {
			continue
		}

		req, err := session.DecodeRequest(data)
		if err != nil {
			return err
		}

		logger.Debug("processing request", zap.ByteString("request", data))

		if err := game.Handle(role, req); err != nil {
			return err
		}
	}
}

// serveInvite renders a QR code that points the peer at their side of the game.
func serveInvite(cfg *Config, path string, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		role, err := session.ParseRole(ps.ByName("locale"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		target := url.URL{
			Scheme:   scheme,
			Host:     r.Host,
			Path:     cfg.prefix + "/",
			RawQuery: url.Values{"locale": {role.Other().String()}}.Encode(),
		}

		png, err := qrcode.Encode(target.String(), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Invite for %s%s/%s (%s) to %s",
			cfg.prefix, path, role.Other(),
			humanReadableSize(int64(len(png))),
			realIP(r),
		)
	}
}

// registerTandemGame sets up routes so that:
//   - $path/:locale     → websocket for the role the locale maps to
//   - $path/:locale/qr  → PNG QR code inviting the other role
func registerTandemGame(cfg *Config, path string, mux *httprouter.Router, game *session.Session, logger *zap.Logger, errs chan<- error) {
	mux.GET(cfg.prefix+path+"/:locale", serveGame(cfg, game, logger))

	mux.GET(cfg.prefix+path+"/:locale/qr", serveInvite(cfg, path, errs))
}
