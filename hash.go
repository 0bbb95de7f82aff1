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

import "encoding/binary"

const (
	murmurSeed = 0xDECAFBADDECAFBAD
	murmurM    = 0xC6A4A7935BD1E995
	murmurR    = 47
)

// MurmurHash64A hashes key with the 64-bit variant used to fingerprint
// build commands in the build log. Only the three test vectors in the
// external interfaces section are authoritative; this is a direct port of
// the reference algorithm, not an independent proof of correctness.
func MurmurHash64A(key []byte) uint64 {
	h := uint64(murmurSeed) ^ (uint64(len(key)) * murmurM)

	data := key
	for len(data) >= 8 {
		k := binary.LittleEndian.Uint64(data)
		k *= murmurM
		k ^= k >> murmurR
		k *= murmurM
		h ^= k
		h *= murmurM
		data = data[8:]
	}

	switch len(data) {
	case 7:
		h ^= uint64(data[6]) << 48
		fallthrough
	case 6:
		h ^= uint64(data[5]) << 40
		fallthrough
	case 5:
		h ^= uint64(data[4]) << 32
		fallthrough
	case 4:
		h ^= uint64(data[3]) << 24
		fallthrough
	case 3:
		h ^= uint64(data[2]) << 16
		fallthrough
	case 2:
		h ^= uint64(data[1]) << 8
		fallthrough
	case 1:
		h ^= uint64(data[0])
		h *= murmurM
	}

	h ^= h >> murmurR
	h *= murmurM
	h ^= h >> murmurR
	return h
}

// HashCommand hashes a command string, for recording in the build log.
func HashCommand(command string) uint64 {
	return MurmurHash64A([]byte(command))
}
