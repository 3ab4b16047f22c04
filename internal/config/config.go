// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package config loads a binary's JSON configuration file, for the
// "-c path, overrides flags" pattern that cmd/smoother's CLI follows.
package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// LoadJSON decodes the JSON file at path into dst. dst must be a pointer
// to a struct whose fields carry `json:"..."` tags, same as a binary's
// flag-mirroring Config struct.
func LoadJSON(dst any, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "config: open")
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(dst); err != nil {
		return errors.Wrap(err, "config: decode")
	}
	return nil
}
