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

// Package port holds the host-facing transport drivers that feed CBWs
// into the translation layer.
package port

import (
	"fmt"

	"github.com/gostor/gobridge/pkg/bot"
)

// BridgeDriver is one host transport: it receives wrappers from the
// host, runs them through the translator, and returns payloads and
// CSWs.
type BridgeDriver interface {
	Run() error
	Close() error
}

// DriverFunc constructs a registered transport over the translator.
type DriverFunc func(*bot.Translator, string) (BridgeDriver, error)

var registeredDrivers = map[string]DriverFunc{}

// RegisterDriver adds a transport under name; called from init.
func RegisterDriver(name string, f DriverFunc) {
	registeredDrivers[name] = f
}

// NewDriver builds the named transport bound to portal.
func NewDriver(name string, t *bot.Translator, portal string) (BridgeDriver, error) {
	f, ok := registeredDrivers[name]
	if !ok {
		return nil, fmt.Errorf("bridge transport driver %s is not found", name)
	}
	return f(t, portal)
}
