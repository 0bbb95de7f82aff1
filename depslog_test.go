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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDepLogRoundTripAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".ninja_deps")

	w, err := OpenDepLogWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.InsertDeps("output1", 100, []string{"input1", "input2"}))
	require.NoError(t, w.InsertDeps("output2", 200, []string{"input1", "input3"}))
	require.NoError(t, w.Close())

	log, err := LoadDepLog(path)
	require.NoError(t, err)

	deps, mtime, ok := log.Get("output1")
	require.True(t, ok)
	require.Equal(t, Timestamp(100), mtime)
	require.Equal(t, []string{"input1", "input2"}, deps)

	deps2, mtime2, ok := log.Get("output2")
	require.True(t, ok)
	require.Equal(t, Timestamp(200), mtime2)
	require.Equal(t, []string{"input1", "input3"}, deps2)
}

func TestDepLogShrinkingDepsOnReinsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".ninja_deps")

	w, err := OpenDepLogWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.InsertDeps("output1", 100, []string{"input1", "input2"}))
	require.NoError(t, w.InsertDeps("output2", 200, []string{"input1", "input3"}))
	require.NoError(t, w.Close())

	w2, err := OpenDepLogWriter(path)
	require.NoError(t, err)
	require.NoError(t, w2.InsertDeps("output1", 100, []string{"input1", "input2"}))
	require.NoError(t, w2.InsertDeps("output2", 200, []string{"input1"}))
	require.NoError(t, w2.InsertDeps("output3", 300, []string{"input4"}))
	require.NoError(t, w2.Close())

	log, err := LoadDepLog(path)
	require.NoError(t, err)

	deps1, mtime1, ok := log.Get("output1")
	require.True(t, ok)
	require.Equal(t, Timestamp(100), mtime1)
	require.Equal(t, []string{"input1", "input2"}, deps1)

	deps2, mtime2, ok := log.Get("output2")
	require.True(t, ok)
	require.Equal(t, Timestamp(200), mtime2)
	require.Equal(t, []string{"input1"}, deps2)

	deps3, mtime3, ok := log.Get("output3")
	require.True(t, ok)
	require.Equal(t, Timestamp(300), mtime3)
	require.Equal(t, []string{"input4"}, deps3)
}

func TestDepLogMissingFileIsEmpty(t *testing.T) {
	log, err := LoadDepLog(filepath.Join(t.TempDir(), "nope.ninja_deps"))
	require.NoError(t, err)
	_, _, ok := log.Get("anything")
	require.False(t, ok)
}

func TestDepLogCorruptHeaderIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".ninja_deps")
	require.NoError(t, os.WriteFile(path, []byte("not a deps file at all!!!!!"), 0644))

	_, err := LoadDepLog(path)
	require.Error(t, err)
	var logErr *LogError
	require.ErrorAs(t, err, &logErr)
}

func TestDepLogV3MtimeConversion(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".ninja_deps")

	var buf []byte
	buf = append(buf, depLogFileSignature...)
	buf = append(buf, 3, 0, 0, 0) // version 3, little-endian

	// path record for "output1" (id 0)
	name := []byte("output1")
	padded := make([]byte, (len(name)+3)/4*4)
	copy(padded, name)
	size := uint32(len(padded) + 4)
	buf = append(buf, le32(size)...)
	buf = append(buf, padded...)
	buf = append(buf, le32(^uint32(0))...)

	// deps record: target 0, 5 seconds mtime (v3), no deps
	recSize := uint32(8)
	buf = append(buf, le32(0x80000000|recSize)...)
	buf = append(buf, le32(0)...)
	buf = append(buf, le32(5)...)

	require.NoError(t, os.WriteFile(path, buf, 0644))

	log, err := LoadDepLog(path)
	require.NoError(t, err)
	deps, mtime, ok := log.Get("output1")
	require.True(t, ok)
	require.Empty(t, deps)
	require.Equal(t, Timestamp(5_000_000_000+999_999_999), mtime)
}

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
