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

package client

import (
	"encoding/json"

	"github.com/gostor/gobridge/pkg/api"
)

// BridgeStatus fetches the full status document of the running bridge.
func (cli *Client) BridgeStatus() (*api.BridgeStatus, error) {
	body, err := cli.get("/bridge/status")
	if err != nil {
		return nil, err
	}
	status := &api.BridgeStatus{}
	if err := json.Unmarshal(body, status); err != nil {
		return nil, err
	}
	return status, nil
}

// BridgeStats fetches the bridge activity counters.
func (cli *Client) BridgeStats() (*api.Stats, error) {
	body, err := cli.get("/bridge/stats")
	if err != nil {
		return nil, err
	}
	stats := &api.Stats{}
	if err := json.Unmarshal(body, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// BridgeSlots lists the in-flight command slots.
func (cli *Client) BridgeSlots() ([]api.BridgeCommand, error) {
	body, err := cli.get("/bridge/slots")
	if err != nil {
		return nil, err
	}
	var slots []api.BridgeCommand
	if err := json.Unmarshal(body, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// EngineReset asks the daemon to reset the hardware command engine.
func (cli *Client) EngineReset() error {
	return cli.post("/bridge/engine/reset")
}
