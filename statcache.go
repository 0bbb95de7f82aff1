// Copyright 2012 Google Inc. All Rights Reserved.
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

import "os"

// StatCache memoizes filesystem mtime lookups by path. A cache entry of
// (false) means the path was looked up and found absent; there is no
// entry at all for a path that was never looked up.
type StatCache struct {
	entries map[string]statResult
	stat    func(string) (Timestamp, bool)
}

type statResult struct {
	ts Timestamp
	ok bool
}

// NewStatCache creates an empty cache backed by os.Stat.
func NewStatCache() *StatCache {
	return &StatCache{
		entries: make(map[string]statResult),
		stat:    statFile,
	}
}

func statFile(path string) (Timestamp, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return TimestampFromTime(info.ModTime()), true
}

// Mtime returns the cached mtime for path, computing and caching it on
// first lookup.
func (c *StatCache) Mtime(path string) (Timestamp, bool) {
	if r, ok := c.entries[path]; ok {
		return r.ts, r.ok
	}
	return c.FreshMtime(path)
}

// CachedMtime returns the mtime for path only if it has already been
// looked up; it never performs a stat. This is what the outdated check
// uses to consult a stat cache without promoting an entry into it.
func (c *StatCache) CachedMtime(path string) (Timestamp, bool, bool) {
	r, cached := c.entries[path]
	return r.ts, r.ok, cached
}

// FreshMtime always re-stats path, overwriting any cached entry.
func (c *StatCache) FreshMtime(path string) (Timestamp, bool) {
	ts, ok := c.stat(path)
	c.entries[path] = statResult{ts: ts, ok: ok}
	return ts, ok
}
