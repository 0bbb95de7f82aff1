// Copyright 2011 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package anvil

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// depfileEscapable is the set of characters gcc/clang will emit with a
// preceding backslash that the backslash should actually escape. Any
// other character following a backslash leaves the backslash in place.
func depfileEscapable(c byte) bool {
	switch c {
	case ' ', '\\', '#', '*', '[', ']', '|':
		return true
	default:
		return false
	}
}

// depfileState accumulates one rule's target and dependency paths
// across however many continuation lines it spans.
type depfileState struct {
	path   strings.Builder
	target string
	hasTgt bool
	deps   []string
}

func (s *depfileState) addPart(part string) {
	s.path.WriteString(part)
}

func (s *depfileState) finishPath() error {
	if s.path.Len() == 0 {
		return nil
	}
	path := s.path.String()
	s.path.Reset()
	if !s.hasTgt {
		if !strings.HasSuffix(path, ":") {
			return &BuildError{Kind: DepfileFailed, Cause: fmt.Errorf("rule in dependency file has multiple outputs")}
		}
		s.target = path[:len(path)-1]
		s.hasTgt = true
		return nil
	}
	s.deps = append(s.deps, path)
	return nil
}

func (s *depfileState) finishDeps(cb func(target string, deps []string) error) error {
	if err := s.finishPath(); err != nil {
		return err
	}
	if s.hasTgt {
		target := s.target
		deps := s.deps
		s.target, s.hasTgt, s.deps = "", false, nil
		return cb(target, deps)
	}
	return nil
}

// ReadDepfile parses fileName as a Make-style dependency file, calling
// cb once per rule with its target and dependency paths.
func ReadDepfile(fileName string, cb func(target string, deps []string) error) error {
	f, err := os.Open(fileName)
	if err != nil {
		return NewBuildError(DepfileFailed, fileName, err)
	}
	defer f.Close()
	if err := parseDepfile(f, cb); err != nil {
		return NewBuildError(DepfileFailed, fileName, err)
	}
	return nil
}

func parseDepfile(r io.Reader, cb func(target string, deps []string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	var state depfileState

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		writeOffset := 0
		readOffset := 0
		for {
			i := indexAnyByte(line[readOffset:], ' ', '\\')
			if i < 0 {
				state.addPart(line[writeOffset:])
				if err := state.finishDeps(cb); err != nil {
					return err
				}
				break
			}
			i += readOffset

			if line[i] == '\\' && i+1 == len(line) {
				state.addPart(line[writeOffset:i])
				if err := state.finishPath(); err != nil {
					return err
				}
				break
			}

			if line[i] == '\\' {
				c := line[i+1]
				if depfileEscapable(c) {
					state.addPart(line[writeOffset:i])
					writeOffset = i + 1
				}
				readOffset = i + 2
				continue
			}

			// A space.
			state.addPart(line[writeOffset:i])
			if err := state.finishPath(); err != nil {
				return err
			}
			writeOffset = i + 1
			readOffset = i + 1
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if state.hasTgt {
		return fmt.Errorf("unexpected end of file")
	}
	return nil
}

func indexAnyByte(s string, a, b byte) int {
	return bytes.IndexAny([]byte(s), string([]byte{a, b}))
}
