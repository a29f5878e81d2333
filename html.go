/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/tandem/session"
)

func serveHomePage(cfg *Config, path string, game *session.Session, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		var body strings.Builder

		body.WriteString(`<h1>tandem</h1>`)
		body.WriteString(`<p>Each partner joins as one side and reviews the other's card.</p>`)

		for _, side := range []struct {
			role  session.Role
			label string
		}{
			{session.English, "Learning Chinese"},
			{session.Chinese, "Learning English"},
		} {
			join := cfg.prefix + path + "/" + side.role.String()

			status := "open"
			if game.Attached(side.role) {
				status = "connected"
			}

			body.WriteString(`<section><h2>` + side.label + `</h2>`)
			body.WriteString(`<p>Status: <span class="` + side.role.String() + `-status">` + status + `</span></p>`)
			body.WriteString(`<p>Websocket: <code>` + join + `</code></p>`)
			body.WriteString(`<img alt="invite your partner" width="160" height="160" src="` + join + `/qr">`)
			body.WriteString(`</section>`)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		written, err := io.WriteString(w, newPage("tandem", body.String()))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Home page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := "User-agent: *\nDisallow: " + cfg.prefix + "/game/\n"

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}
