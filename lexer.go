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

import "strings"

// eatWhitespace consumes leading spaces from line and returns how many
// bytes it ate.
func eatWhitespace(line *string) int {
	i := 0
	for i < len(*line) && (*line)[i] == ' ' {
		i++
	}
	*line = (*line)[i:]
	return i
}

// eatIdentifier consumes a leading run of identifier characters from
// line. Returns "", false if line does not start with one.
func eatIdentifier(line *string) (string, bool) {
	i := 0
	for i < len(*line) && isIdentChar((*line)[i]) {
		i++
	}
	if i == 0 {
		return "", false
	}
	ident := (*line)[:i]
	*line = (*line)[i:]
	return ident, true
}

// eatPath consumes one path token from line: a run of bytes up to an
// unescaped space, ':', or '|'. A '$'-escaped occurrence of one of those
// bytes does not end the token, and neither does a space that is really
// just the indentation at the head of a `$`-continued line (recognized
// by the '\n' immediately preceding it, left over from merging the
// continuation).
func eatPath(line *string) (string, error) {
	s := *line
	i := 0
	for {
		rest := s[i:]
		n := strings.IndexAny(rest, " :|")
		if n < 0 {
			i = len(s)
			break
		}
		if n > 0 && rest[n] == ' ' && rest[n-1] == '\n' {
			i += n + 1
			for i < len(s) && s[i] == ' ' {
				i++
			}
			continue
		}
		if n > 0 && rest[n-1] == '$' {
			i += n + 1
			continue
		}
		i += n
		break
	}
	path := s[:i]
	*line = s[i:]
	if path == "" {
		return "", NewParseError(ExpectedPath, "", 0, "")
	}
	if err := CheckEscapes(path); err != nil {
		return "", err
	}
	return path, nil
}

// eatPaths repeatedly eats path tokens separated by single spaces until
// line starts with a byte in endings (consumed and returned) or runs out.
func eatPaths(line *string, endings string) ([]string, byte, bool, error) {
	var paths []string
	for {
		if len(*line) == 0 {
			return paths, 0, false, nil
		}
		if strings.IndexByte(endings, (*line)[0]) >= 0 {
			end := (*line)[0]
			*line = (*line)[1:]
			return paths, end, true, nil
		}
		p, err := eatPath(line)
		if err != nil {
			return nil, 0, false, err
		}
		paths = append(paths, p)
		eatWhitespace(line)
	}
}

