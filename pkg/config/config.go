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

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
)

const (
	// ConfigFileName is the name of config file
	ConfigFileName = "config.json"
)

var (
	configDir = os.Getenv("GOBRIDGE_CONFIG")
)

// Bridge holds the hardware-facing settings: where the register blocks
// sit, how many command slots the engine carries, and how long a
// busy-poll may spin.
type Bridge struct {
	CmdEngineBase uint16 `json:"cmdEngineBase"`
	DmaEngineBase uint16 `json:"dmaEngineBase"`
	TxBlockBase   uint16 `json:"txBlockBase"`
	SlotCount     int    `json:"slotCount"`
	PollBudget    int    `json:"pollBudget"`
	BlockShift    uint   `json:"blockShift"`
}

type Config struct {
	Storage string `json:"storage"`
	Image   string `json:"image"`
	Portal  string `json:"portal"`
	Bridge  Bridge `json:"bridge"`
}

func init() {
	if configDir == "" {
		home, err := homedir.Dir()
		if err != nil {
			home = "."
		}
		configDir = filepath.Join(home, ".gobridge")
	}
}

// ConfigDir returns the directory the configuration file is stored in
func ConfigDir() string {
	return configDir
}

// Load reads the configuration file in the given directory. A missing
// file yields the defaults: volatile media behind the register bases
// the reference hardware uses.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = ConfigDir()
	}

	filename := filepath.Join(configDir, ConfigFileName)
	config := &Config{
		Storage: "mem",
		Portal:  "127.0.0.1:9276",
		Bridge: Bridge{
			CmdEngineBase: 0x0100,
			DmaEngineBase: 0x0200,
			TxBlockBase:   0x0300,
			SlotCount:     8,
			BlockShift:    9,
		},
	}

	if _, err := os.Stat(filename); err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, fmt.Errorf("%s - %v", filename, err)
	}
	file, err := os.Open(filename)
	if err != nil {
		return config, fmt.Errorf("%s - %v", filename, err)
	}
	defer file.Close()
	if err = json.NewDecoder(file).Decode(config); err != nil {
		return config, fmt.Errorf("%s - %v", filename, err)
	}
	return config, nil
}

// Save encodes and writes out the configuration.
func (config *Config) Save(filename string) error {
	if filename == "" {
		return fmt.Errorf("can't save config with empty filename")
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := json.MarshalIndent(config, "", "\t")
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}
