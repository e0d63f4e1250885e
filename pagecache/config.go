// Copyright 2020 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.
package pagecache

import (
	"encoding/json"
	"io/ioutil"

	"github.com/pkg/errors"
)

// Config carries the engine's compile-time-constant parameters. The
// spec (§6) treats block size and capacity as build-time constants
// shared across the whole process; Config exists so tests and the
// benchmark harness can vary them without rebuilding, while New's
// defaults (DefaultBlockSize, DefaultCapacity) remain the values a
// production build would ship with.
type Config struct {
	// BlockSize is the fixed, aligned unit of I/O between the engine
	// and the device adapter, in bytes. Zero selects DefaultBlockSize.
	BlockSize int `json:"block_size"`

	// Capacity is the maximum number of resident blocks across all
	// open handles. Zero selects DefaultCapacity.
	Capacity int `json:"capacity"`
}

// DefaultConfig returns the package defaults (4 KiB blocks, 256 block
// capacity), matching the values the original cache used.
func DefaultConfig() Config {
	return Config{BlockSize: DefaultBlockSize, Capacity: DefaultCapacity}
}

// LoadConfig parses a JSON configuration file into a Config, the way
// the teacher's conf.LoadConfig parses mender.conf -- a flat JSON
// document, missing fields left at their zero value (resolved to the
// package defaults by New).
func LoadConfig(path string) (Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config file %q", path)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config file %q", path)
	}
	return cfg, nil
}
