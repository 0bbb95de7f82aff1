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
	"os"
	"sort"
	"strconv"
)

const (
	buildLogFileSignature  = "# ninja log v%d\n"
	buildLogOldestVersion  = 4
	buildLogCurrentVersion = 5
)

// BuildLogEntry is the most recently recorded run of the command that
// produced Output.
type BuildLogEntry struct {
	Output      string
	CommandHash uint64
	StartTimeMs uint32
	EndTimeMs   uint32
	RestatMtime Timestamp
}

// BuildLog is the in-memory form of a `.ninja_log` file: the latest
// entry per output, keyed by output path. It is mutated sparsely during
// a build and fully rewritten at shutdown.
type BuildLog struct {
	entries map[string]*BuildLogEntry
}

// NewBuildLog returns an empty build log, as used when no `.ninja_log`
// exists yet or the on-disk one failed to open.
func NewBuildLog() *BuildLog {
	return &BuildLog{entries: make(map[string]*BuildLogEntry)}
}

// Lookup returns the most recent entry recorded for output, if any.
func (b *BuildLog) Lookup(output string) (*BuildLogEntry, bool) {
	e, ok := b.entries[output]
	return e, ok
}

// Record stores (or overwrites) the entry for output.
func (b *BuildLog) Record(e *BuildLogEntry) {
	b.entries[e.Output] = e
}

// LoadBuildLog reads path. A missing file yields an empty log with no
// warning. Other file-level trouble (unopenable file, corrupt header,
// unsupported version) is recoverable: it yields
// an empty log and a non-empty warning describing why, rather than an
// error, since losing the whole build log only costs a spurious
// rebuild of everything, not correctness. A malformed record within an
// otherwise-valid log is not recoverable the same way — it means the
// file has been corrupted or hand-edited in a way that can silently
// mis-hash a command — so that returns a *LogError instead.
func LoadBuildLog(path string) (log *BuildLog, warning string, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewBuildLog(), "", nil
		}
		return NewBuildLog(), fmt.Sprintf("opening %s: %v", path, err), nil
	}
	defer f.Close()

	log = NewBuildLog()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	if !scanner.Scan() {
		return log, "", nil
	}
	version := 0
	if _, err := fmt.Sscanf(scanner.Text(), buildLogFileSignature, &version); err != nil {
		return NewBuildLog(), fmt.Sprintf("%s: not a ninja log file, starting over", path), nil
	}
	if version < buildLogOldestVersion || version > buildLogCurrentVersion {
		return NewBuildLog(), fmt.Sprintf("%s: unsupported build log version %d, starting over", path, version), nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		fields := splitTabFields(line, 5)
		if len(fields) < 5 {
			return nil, "", NewLogError(fmt.Sprintf("%s: record has fewer than 5 fields: %q", path, line), nil)
		}
		startMs, err1 := strconv.ParseUint(fields[0], 10, 32)
		endMs, err2 := strconv.ParseUint(fields[1], 10, 32)
		restat, err3 := strconv.ParseInt(fields[2], 10, 64)
		if err1 != nil {
			return nil, "", NewLogError(fmt.Sprintf("%s: invalid start time %q", path, fields[0]), err1)
		}
		if err2 != nil {
			return nil, "", NewLogError(fmt.Sprintf("%s: invalid end time %q", path, fields[1]), err2)
		}
		if err3 != nil {
			return nil, "", NewLogError(fmt.Sprintf("%s: invalid restat mtime %q", path, fields[2]), err3)
		}
		output := fields[3]
		var hash uint64
		if version < 5 {
			hash = HashCommand(fields[4])
		} else {
			h, err := strconv.ParseUint(fields[4], 16, 64)
			if err != nil {
				return nil, "", NewLogError(fmt.Sprintf("%s: invalid command hash %q", path, fields[4]), err)
			}
			hash = h
		}
		log.entries[output] = &BuildLogEntry{
			Output:      output,
			CommandHash: hash,
			StartTimeMs: uint32(startMs),
			EndTimeMs:   uint32(endMs),
			RestatMtime: Timestamp(restat),
		}
	}
	if err := scanner.Err(); err != nil {
		return NewBuildLog(), fmt.Sprintf("reading %s: %v", path, err), nil
	}
	return log, "", nil
}

// splitTabFields splits line on tab into at most n fields, the last of
// which retains any embedded tabs (the command hash field never
// contains one, but this mirrors the reference reader's tab4-onward
// slice rather than an n-way strings.Split that would silently drop
// extra tabs).
func splitTabFields(line string, n int) []string {
	fields := make([]string, 0, n)
	rest := line
	for len(fields) < n-1 {
		i := indexByte(rest, '\t')
		if i < 0 {
			break
		}
		fields = append(fields, rest[:i])
		rest = rest[i+1:]
	}
	fields = append(fields, rest)
	return fields
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// Write rewrites path with every entry, sorted by EndTimeMs descending.
// Rewriting in full at shutdown keeps the log bounded and avoids ever
// having to reconcile a partially-written append.
func (b *BuildLog) Write(path string) error {
	entries := make([]*BuildLogEntry, 0, len(b.entries))
	for _, e := range b.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].EndTimeMs > entries[j].EndTimeMs
	})

	var buf bytes.Buffer
	fmt.Fprintf(&buf, buildLogFileSignature, buildLogCurrentVersion)
	for _, e := range entries {
		fmt.Fprintf(&buf, "%d\t%d\t%d\t%s\t%016x\n",
			e.StartTimeMs, e.EndTimeMs, int64(e.RestatMtime), e.Output, e.CommandHash)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return NewIoError(path, err)
	}
	return nil
}
