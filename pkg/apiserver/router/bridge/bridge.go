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
package bridge

import (
	"net/http"

	"golang.org/x/net/context"

	"github.com/gostor/gobridge/pkg/api"
	"github.com/gostor/gobridge/pkg/apiserver/httputils"
	"github.com/gostor/gobridge/pkg/apiserver/router"
)

// Backend is the view of the running bridge the status API exposes.
type Backend interface {
	Status() api.BridgeStatus
	Stats() api.Stats
	InFlight() []api.BridgeCommand
	ResetEngine() error
}

// bridgeRouter is a router to talk with the bridge controller.
type bridgeRouter struct {
	backend Backend
	routes  []router.Route
}

// NewRouter initializes a new bridge router.
func NewRouter(b Backend) router.Router {
	r := &bridgeRouter{backend: b}
	r.initRoutes()
	return r
}

// Routes returns the available routes to the bridge controller.
func (r *bridgeRouter) Routes() []router.Route {
	return r.routes
}

func (r *bridgeRouter) initRoutes() {
	r.routes = []router.Route{
		// GET
		router.NewGetRoute("/bridge/status", r.getStatus),
		router.NewGetRoute("/bridge/stats", r.getStats),
		router.NewGetRoute("/bridge/slots", r.getSlots),
		// POST
		router.NewPostRoute("/bridge/engine/reset", r.postEngineReset),
	}
}

func (r *bridgeRouter) getStatus(ctx context.Context, w http.ResponseWriter, req *http.Request, vars map[string]string) error {
	return httputils.WriteJSON(w, http.StatusOK, r.backend.Status())
}

func (r *bridgeRouter) getStats(ctx context.Context, w http.ResponseWriter, req *http.Request, vars map[string]string) error {
	return httputils.WriteJSON(w, http.StatusOK, r.backend.Stats())
}

func (r *bridgeRouter) getSlots(ctx context.Context, w http.ResponseWriter, req *http.Request, vars map[string]string) error {
	slots := r.backend.InFlight()
	if slots == nil {
		slots = []api.BridgeCommand{}
	}
	return httputils.WriteJSON(w, http.StatusOK, slots)
}

func (r *bridgeRouter) postEngineReset(ctx context.Context, w http.ResponseWriter, req *http.Request, vars map[string]string) error {
	if err := httputils.ParseForm(req); err != nil {
		return err
	}
	if err := r.backend.ResetEngine(); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
