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

// maxPathComponents bounds the component stack CanonicalizePath keeps
// around for resolving "..". A path with more components than this is
// almost certainly pathological input, not a real build graph.
const maxPathComponents = 60

func isPathSeparator(c byte) bool {
	return c == '/'
}

// CanonicalizePath collapses "." and ".." components and runs of "/" in
// path, in place, and returns the canonicalized result. An empty path
// stays empty; a path that collapses to nothing becomes ".". A leading
// "/" (and a leading "//", treated as a network-path prefix) is preserved
// and never touched by ".." backtracking.
//
// CanonicalizePath is idempotent: canonicalizing an already-canonical
// path is a no-op.
func CanonicalizePath(path []byte) []byte {
	if len(path) == 0 {
		return path
	}

	var components [maxPathComponents]int
	componentCount := 0

	start := 0
	dst := 0
	src := 0
	end := len(path)

	if isPathSeparator(path[src]) {
		if end > 1 && isPathSeparator(path[src+1]) {
			src += 2
			dst += 2
		} else {
			src++
			dst++
		}
	}
	prefix := dst

	for src < end {
		if path[src] == '.' {
			if src+1 == end || isPathSeparator(path[src+1]) {
				// "." component: drop it.
				src += 2
				continue
			} else if path[src+1] == '.' && (src+2 == end || isPathSeparator(path[src+2])) {
				// ".." component: back up a component if one exists.
				if componentCount > 0 {
					dst = components[componentCount-1]
					src += 3
					componentCount--
				} else {
					path[dst] = path[src]
					path[dst+1] = path[src+1]
					dst += 2
					if src+2 < end {
						path[dst] = path[src+2]
						dst++
					}
					src += 3
				}
				continue
			}
		}

		if isPathSeparator(path[src]) {
			src++
			continue
		}

		if componentCount == maxPathComponents {
			panic("path has too many components: " + string(path))
		}
		components[componentCount] = dst
		componentCount++

		for src != end && !isPathSeparator(path[src]) {
			path[dst] = path[src]
			dst++
			src++
		}
		if src != end {
			// Copy the trailing separator too, so the next component's
			// start position is correct.
			path[dst] = path[src]
			dst++
			src++
		}
	}

	if dst == start {
		path[dst] = '.'
		dst++
	} else if dst > prefix && isPathSeparator(path[dst-1]) {
		// Drop the separator copied after the last kept component.
		dst--
	}

	return path[:dst]
}

// CanonicalizePathString is the string convenience wrapper around
// CanonicalizePath.
func CanonicalizePathString(path string) string {
	if path == "" {
		return path
	}
	buf := []byte(path)
	return string(CanonicalizePath(buf))
}
