/*
Copyright 2017 The GoStor Authors All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package apiserver provides the restful admin API of the bridge
// daemon.
package apiserver

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	systemdActivation "github.com/coreos/go-systemd/activation"
	"github.com/docker/go-connections/sockets"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/gostor/gobridge/pkg/apiserver/httputils"
	"github.com/gostor/gobridge/pkg/apiserver/router"
	"github.com/gostor/gobridge/pkg/apiserver/router/bridge"
)

// versionMatcher lets clients prefix any route with an API version,
// "/v0.2.0/bridge/status" and "/bridge/status" hit the same handler.
const versionMatcher = "/v{version:[0-9.]+}"

// Config carries the listen addresses and knobs for the admin API.
type Config struct {
	Logging   bool
	Version   string
	TLSConfig *tls.Config
	Addrs     []Addr
}

// Addr is one listen address with its protocol ("tcp" or "fd").
type Addr struct {
	Proto string
	Addr  string
}

// Server serves the admin API over one or more listeners.
type Server struct {
	cfg       *Config
	listeners []net.Listener
	routers   []router.Router
	mux       *mux.Router
}

// New allocates the listeners for every configured address. Serving
// starts later, in Wait.
func New(cfg *Config) (*Server, error) {
	s := &Server{cfg: cfg}
	for _, addr := range cfg.Addrs {
		ls, err := s.listen(addr.Proto, addr.Addr)
		if err != nil {
			return nil, err
		}
		log.Infof("admin API on %s (%s)", addr.Proto, addr.Addr)
		s.listeners = append(s.listeners, ls...)
	}
	return s, nil
}

// Close stops all listeners and thus stops receiving requests.
func (s *Server) Close() {
	for _, l := range s.listeners {
		if err := l.Close(); err != nil {
			log.Error(err)
		}
	}
}

// InitRouters registers the routes over the running bridge.
func (s *Server) InitRouters(b bridge.Backend) {
	s.routers = append(s.routers, bridge.NewRouter(b))
}

// Wait serves every listener and reports the first error, or nil once
// all listeners shut down cleanly.
func (s *Server) Wait(waitChan chan error) {
	s.mux = s.createMux()

	errs := make(chan error, len(s.listeners))
	for _, l := range s.listeners {
		go func(l net.Listener) {
			log.Infof("API listen on %s", l.Addr())
			err := (&http.Server{Handler: s.mux}).Serve(l)
			if err != nil && strings.Contains(err.Error(), "use of closed network connection") {
				err = nil
			}
			errs <- err
		}(l)
	}

	for range s.listeners {
		if err := <-errs; err != nil {
			log.Errorf("ServeAPI error: %v", err)
			waitChan <- err
			return
		}
	}
	waitChan <- nil
}

// createMux binds every registered route, both version-prefixed and
// plain.
func (s *Server) createMux() *mux.Router {
	m := mux.NewRouter()
	for _, apiRouter := range s.routers {
		for _, r := range apiRouter.Routes() {
			f := s.makeHTTPHandler(r.Handler())
			log.Debugf("Registering %s, %s", r.Method(), r.Path())
			m.Path(versionMatcher + r.Path()).Methods(r.Method()).Handler(f)
			m.Path(r.Path()).Methods(r.Method()).Handler(f)
		}
	}
	return m
}

func (s *Server) makeHTTPHandler(handler httputils.APIFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Logging {
			log.Infof("Calling %s %s", r.Method, r.URL.Path)
		}
		vars := mux.Vars(r)
		if vars == nil {
			vars = make(map[string]string)
		}
		ctx := context.Background()
		if v := vars["version"]; v != "" {
			ctx = context.WithValue(ctx, httputils.APIVersionKey, v)
		}
		w.Header().Set("Api-Version", httputils.VersionFromContext(ctx))
		if err := handler(ctx, w, r, vars); err != nil {
			log.Errorf("Handler for %s %s returned error: %v", r.Method, r.URL.Path, err)
			httputils.WriteError(w, err)
		}
	}
}

func (s *Server) listen(proto, addr string) ([]net.Listener, error) {
	switch proto {
	case "fd":
		return listenFD(addr, s.cfg.TLSConfig)
	case "tcp":
		l, err := sockets.NewTCPSocket(addr, s.cfg.TLSConfig)
		if err != nil {
			return nil, err
		}
		return []net.Listener{l}, nil
	default:
		return nil, fmt.Errorf("invalid protocol format: %q", proto)
	}
}

// listenFD resolves systemd socket activated fds: a number selects one
// activated file, "" or "*" takes them all.
func listenFD(addr string, tlsConfig *tls.Config) ([]net.Listener, error) {
	var (
		err       error
		listeners []net.Listener
	)
	if tlsConfig != nil {
		listeners, err = systemdActivation.TLSListeners(tlsConfig)
	} else {
		listeners, err = systemdActivation.Listeners()
	}
	if err != nil {
		return nil, err
	}
	if len(listeners) == 0 {
		return nil, fmt.Errorf("no sockets found")
	}

	if addr == "" || addr == "*" {
		return listeners, nil
	}

	fdNum, err := strconv.Atoi(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse systemd address, should be number: %v", err)
	}
	fdOffset := fdNum - 3
	if len(listeners) < fdOffset+1 {
		return nil, fmt.Errorf("too few socket activated files passed in")
	}
	if listeners[fdOffset] == nil {
		return nil, fmt.Errorf("failed to listen on systemd activated file at fd %d", fdOffset+3)
	}
	for i, ls := range listeners {
		if i == fdOffset || ls == nil {
			continue
		}
		if err := ls.Close(); err != nil {
			log.Errorf("failed to close systemd activated file at fd %d: %v", fdOffset+3, err)
		}
	}
	return []net.Listener{listeners[fdOffset]}, nil
}
