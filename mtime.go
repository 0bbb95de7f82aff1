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

import (
	"math"
	"time"
)

// Timestamp is a nanosecond count since the Unix epoch. There is no zero
// value for "file does not exist"; absence is represented by the absence
// of a Timestamp (an (*Timestamp)(nil) or the ok=false of a two-value
// return), never by the number 0.
type Timestamp int64

var epoch = time.Unix(0, 0)
var maxTimestamp = time.Unix(0, math.MaxInt64)

// TimestampFromTime converts a system time to a Timestamp. A time at or
// before the epoch clamps to 1ns rather than 0, since 0 is reserved to
// mean "absent" elsewhere in this package. A time past what fits in an
// int64 nanosecond count saturates to math.MaxInt64.
func TimestampFromTime(t time.Time) Timestamp {
	if !t.After(epoch) {
		return 1
	}
	if t.After(maxTimestamp) {
		return math.MaxInt64
	}
	return Timestamp(t.UnixNano())
}
