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

import "github.com/sirupsen/logrus"

// logger is the single configured logger threaded through the package.
// Callers that want JSON output, a log file, or a different level can
// reassign it before a build starts.
var logger = newDefaultLogger()

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLogger replaces the package logger, e.g. so cmd/anvilbuild can wire
// -v into a Debug level or redirect output.
func SetLogger(l *logrus.Logger) {
	logger = l
}

func warningf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

func errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// explainf reports an "explain"-level message: the reason a target was
// decided to be outdated. Only emitted at Debug level since it is noisy.
func explainf(format string, args ...interface{}) {
	logger.Debugf("explain: "+format, args...)
}
