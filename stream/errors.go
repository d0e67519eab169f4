// Copyright (C) 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stream

import "github.com/google/structstream/core/fault"

// Halt is the opaque early-termination sentinel (spec §7). A Stream
// method returns Halt to mean "I have decided to stop"; the producer
// that observes it makes no further Stream calls and propagates Halt
// to its own caller unchanged. Halt carries no payload by design: a
// Stream wanting to surface diagnostics stores them internally and
// returns them to its own caller after the emission returns.
const Halt fault.Const = "stream: sink requested early termination"

// Malformed is returned by stream/validate when a token sequence
// violates the structural invariants in the package doc (unbalanced
// begin/end, an orphan map key, a tagged/tuple/record/enum wrapping
// the wrong number of inner values, more than one top-level value).
// It is a distinct fault.Const from Halt, so a test can tell "the sink
// chose to stop" apart from "the producer emitted garbage"; a producer
// simply propagates either one the same way, by returning immediately.
const Malformed fault.Const = "stream: ill-formed token sequence"
