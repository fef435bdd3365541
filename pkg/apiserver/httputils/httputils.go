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

package httputils

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/gostor/gobridge/pkg/version"
)

// APIVersionKey is the client's requested API version.
const APIVersionKey = "api-version"

// APIFunc is an adapter to allow the use of ordinary functions as API
// endpoints. Any function with the appropriate signature can be
// registered as an endpoint.
type APIFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error

// ParseForm ensures the request form is parsed even with invalid
// content types.
func ParseForm(r *http.Request) error {
	if r == nil {
		return nil
	}
	if err := r.ParseForm(); err != nil && !strings.HasPrefix(err.Error(), "mime:") {
		return err
	}
	return nil
}

// WriteError maps a handler error onto an HTTP status and sends it.
func WriteError(w http.ResponseWriter, err error) {
	if err == nil || w == nil {
		logrus.WithFields(logrus.Fields{"error": err, "writer": w}).Error("unexpected HTTP error handling")
		return
	}

	statusCode := http.StatusInternalServerError
	errStr := strings.ToLower(err.Error())
	for keyword, status := range map[string]int{
		"not found":     http.StatusNotFound,
		"no such":       http.StatusNotFound,
		"bad parameter": http.StatusBadRequest,
		"conflict":      http.StatusConflict,
	} {
		if strings.Contains(errStr, keyword) {
			statusCode = status
			break
		}
	}

	http.Error(w, err.Error(), statusCode)
}

// WriteJSON writes the value v to the http response stream as json
// with standard json encoding.
func WriteJSON(w http.ResponseWriter, code int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

// VersionFromContext returns an API version from the context using
// APIVersionKey, falling back to the build version.
func VersionFromContext(ctx context.Context) string {
	if ctx == nil {
		return version.Version
	}
	val := ctx.Value(APIVersionKey)
	if val == nil {
		return version.Version
	}
	return val.(string)
}
