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
	"encoding/binary"
	"fmt"
	"io"
	"os"

	deadlock "github.com/sasha-s/go-deadlock"
)

const (
	depLogFileSignature = "# ninjadeps\n"
	depLogOldestVersion  = 3
	depLogCurrentVersion = 4
)

// depRecord is one path's recorded dependency set.
type depRecord struct {
	deps  []uint32
	mtime Timestamp
	valid bool
}

// DepLog is the insertion-ordered `.ninja_deps` contents: a path-to-ID
// table plus, per ID, the most recent dependency record (if any).
type DepLog struct {
	paths   []string
	ids     map[string]uint32
	records []depRecord
}

// NewDepLog returns an empty dep log.
func NewDepLog() *DepLog {
	return &DepLog{ids: make(map[string]uint32)}
}

// Get returns the recorded dependencies and mtime for path, if any.
func (d *DepLog) Get(path string) (deps []string, mtime Timestamp, ok bool) {
	id, present := d.ids[path]
	if !present || !d.records[id].valid {
		return nil, 0, false
	}
	r := d.records[id]
	out := make([]string, len(r.deps))
	for i, depID := range r.deps {
		out[i] = d.paths[depID]
	}
	return out, r.mtime, true
}

func (d *DepLog) pathID(path string) (uint32, bool) {
	id, ok := d.ids[path]
	return id, ok
}

// LoadDepLog reads path into a fresh DepLog. A missing file yields an
// empty log; any other failure is returned to the caller: unlike the build log, losing
// the dep log silently would make gcc-style header dependencies
// invisible to the next build without any sign anything went wrong.
func LoadDepLog(path string) (*DepLog, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDepLog(), nil
		}
		return nil, NewIoError(path, err)
	}
	defer f.Close()
	return readDepLog(f, path)
}

func readDepLog(r io.Reader, path string) (*DepLog, error) {
	br := bufio.NewReader(r)

	header := make([]byte, len(depLogFileSignature))
	if _, err := io.ReadFull(br, header); err != nil {
		if err == io.EOF {
			return NewDepLog(), nil
		}
		if err == io.ErrUnexpectedEOF {
			return nil, NewLogError("dep log truncated reading header", err)
		}
		return nil, NewIoError(path, err)
	}
	if string(header) != depLogFileSignature {
		return nil, NewLogError("not a ninjadeps file", nil)
	}

	var version uint32
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, NewLogError("dep log truncated reading version", err)
	}
	if version != depLogOldestVersion && version != depLogCurrentVersion {
		return nil, NewLogError(fmt.Sprintf("unsupported dep log version %d", version), nil)
	}

	log := NewDepLog()
	for {
		var head uint32
		if err := binary.Read(br, binary.LittleEndian, &head); err != nil {
			if err == io.EOF {
				break
			}
			return nil, NewLogError("dep log truncated reading record header", err)
		}

		if head&0x80000000 == 0 {
			size := head
			if size%4 != 0 || size < 4 {
				return nil, NewLogError(fmt.Sprintf("invalid path record size 0x%x", size), nil)
			}
			name := make([]byte, size-4)
			if _, err := io.ReadFull(br, name); err != nil {
				return nil, NewLogError("dep log truncated reading path", err)
			}
			name = bytes.TrimRight(name, "\x00")

			var checksum uint32
			if err := binary.Read(br, binary.LittleEndian, &checksum); err != nil {
				return nil, NewLogError("dep log truncated reading checksum", err)
			}
			id := uint32(len(log.paths))
			if checksum != ^id {
				return nil, NewLogError(fmt.Sprintf("bad checksum 0x%08x for id 0x%08x", checksum, id), nil)
			}
			pathStr := string(name)
			if _, dup := log.ids[pathStr]; dup {
				return nil, NewLogError(fmt.Sprintf("duplicate path %q in dep log", pathStr), nil)
			}
			log.ids[pathStr] = id
			log.paths = append(log.paths, pathStr)
			log.records = append(log.records, depRecord{})

		} else {
			size := head & 0x7fffffff
			minSize := uint32(12)
			if version < 4 {
				minSize = 8
			}
			if size%4 != 0 || size < minSize {
				return nil, NewLogError(fmt.Sprintf("invalid deps record size 0x%x", size), nil)
			}
			var divisor uint32 = 3
			if version < 4 {
				divisor = 2
			}
			n := size/4 - divisor

			var id uint32
			if err := binary.Read(br, binary.LittleEndian, &id); err != nil {
				return nil, NewLogError("dep log truncated reading target id", err)
			}

			var mtime Timestamp
			if version < 4 {
				var seconds uint32
				if err := binary.Read(br, binary.LittleEndian, &seconds); err != nil {
					return nil, NewLogError("dep log truncated reading mtime", err)
				}
				mtime = Timestamp(int64(seconds)*1_000_000_000 + 999_999_999)
			} else {
				var nanos uint64
				if err := binary.Read(br, binary.LittleEndian, &nanos); err != nil {
					return nil, NewLogError("dep log truncated reading mtime", err)
				}
				mtime = Timestamp(nanos)
			}

			if int(id) >= len(log.records) {
				return nil, NewLogError(fmt.Sprintf("deps record for undefined path id 0x%x", id), nil)
			}

			deps := make([]uint32, n)
			for i := uint32(0); i < n; i++ {
				var dep uint32
				if err := binary.Read(br, binary.LittleEndian, &dep); err != nil {
					return nil, NewLogError("dep log truncated reading dep id", err)
				}
				if int(dep) >= len(log.paths) {
					return nil, NewLogError(fmt.Sprintf("undefined path id 0x%x in dependency", dep), nil)
				}
				deps[i] = dep
			}

			log.records[id] = depRecord{deps: deps, mtime: mtime, valid: true}
		}
	}

	return log, nil
}

// DepLogWriter appends new dependency records to an open `.ninja_deps`
// file, matching the append-only on-disk protocol: mutation is a
// synchronized wrapper since the worker pool appends from many
// goroutines as tasks finish.
type DepLogWriter struct {
	mu   deadlock.Mutex
	log  *DepLog
	file *os.File
}

// OpenDepLogWriter opens (creating if absent) path for append-mutation,
// loading any existing contents first.
func OpenDepLogWriter(path string) (*DepLogWriter, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, NewIoError(path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, NewIoError(path, err)
	}

	var log *DepLog
	if info.Size() == 0 {
		if _, err := f.Write([]byte(depLogFileSignature)); err != nil {
			f.Close()
			return nil, NewIoError(path, err)
		}
		if err := binary.Write(f, binary.LittleEndian, uint32(depLogCurrentVersion)); err != nil {
			f.Close()
			return nil, NewIoError(path, err)
		}
		log = NewDepLog()
	} else {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, NewIoError(path, err)
		}
		log, err = readDepLog(f, path)
		if err != nil {
			f.Close()
			return nil, err
		}
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, NewIoError(path, err)
		}
	}

	return &DepLogWriter{log: log, file: f}, nil
}

// Get delegates to the in-memory log under the writer's lock so reads
// from other goroutines observe a consistent snapshot.
func (w *DepLogWriter) Get(path string) ([]string, Timestamp, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.log.Get(path)
}

// Log returns the in-memory dep log backing this writer, for read-only
// consumers like the outdated check that only ever call Get.
func (w *DepLogWriter) Log() *DepLog {
	return w.log
}

// Close closes the underlying file handle.
func (w *DepLogWriter) Close() error {
	return w.file.Close()
}

func (w *DepLogWriter) insertPath(path string) (uint32, error) {
	if id, ok := w.log.pathID(path); ok {
		return id, nil
	}
	id := uint32(len(w.log.paths))
	padding := (4 - len(path)%4) % 4
	size := uint32(len(path) + padding + 4)

	if err := binary.Write(w.file, binary.LittleEndian, size); err != nil {
		return 0, NewIoError("", err)
	}
	if _, err := w.file.Write([]byte(path)); err != nil {
		return 0, NewIoError("", err)
	}
	if padding > 0 {
		if _, err := w.file.Write(make([]byte, padding)); err != nil {
			return 0, NewIoError("", err)
		}
	}
	if err := binary.Write(w.file, binary.LittleEndian, ^id); err != nil {
		return 0, NewIoError("", err)
	}

	w.log.ids[path] = id
	w.log.paths = append(w.log.paths, path)
	w.log.records = append(w.log.records, depRecord{})
	return id, nil
}

// InsertDeps records target's dependencies as of mtime, writing a new
// deps record to disk only if the target is new or its mtime or dep
// list actually changed (matching the reference implementation's
// need_write short-circuit, which keeps a log with no real changes
// from growing run over run).
func (w *DepLogWriter) InsertDeps(target string, mtime Timestamp, deps []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	targetID, err := w.insertPath(target)
	if err != nil {
		return err
	}

	existing := w.log.records[targetID]
	needWrite := !existing.valid || existing.mtime != mtime

	depIDs := append([]uint32(nil), existing.deps...)
	if len(depIDs) != len(deps) {
		needWrite = true
		resized := make([]uint32, len(deps))
		copy(resized, depIDs)
		for i := len(depIDs); i < len(resized); i++ {
			resized[i] = ^uint32(0)
		}
		depIDs = resized
	}

	for i, dep := range deps {
		id, err := w.insertPath(dep)
		if err != nil {
			return err
		}
		if depIDs[i] != id {
			needWrite = true
			depIDs[i] = id
		}
	}

	if needWrite {
		size := uint32(len(depIDs))*4 + 12
		if err := binary.Write(w.file, binary.LittleEndian, 0x80000000|size); err != nil {
			return NewIoError("", err)
		}
		if err := binary.Write(w.file, binary.LittleEndian, targetID); err != nil {
			return NewIoError("", err)
		}
		if err := binary.Write(w.file, binary.LittleEndian, uint64(mtime)); err != nil {
			return NewIoError("", err)
		}
		for _, id := range depIDs {
			if err := binary.Write(w.file, binary.LittleEndian, id); err != nil {
				return NewIoError("", err)
			}
		}
	}

	w.log.records[targetID] = depRecord{deps: depIDs, mtime: mtime, valid: true}
	return nil
}
