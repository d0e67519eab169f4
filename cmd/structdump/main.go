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

// structdump is a demonstration binary: it decodes a JSON document
// into a generic interface{}, wraps it with derive.Value, optionally
// runs it through the depth validator, and re-renders it with either
// the json or protostream sink. It exists to exercise the whole
// pipeline end to end, not to be a general-purpose tool.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"os"

	"google.golang.org/protobuf/encoding/protojson"

	"github.com/google/structstream/derive"
	sjson "github.com/google/structstream/json"
	"github.com/google/structstream/log"
	"github.com/google/structstream/protostream"
	"github.com/google/structstream/stream"
	"github.com/google/structstream/stream/validate"
)

var (
	format   = flag.String("format", "json", "output sink: json or proto")
	doCheck  = flag.Bool("validate", true, "wrap the sink with the depth validator")
	outPath  = flag.String("out", "", "output file path, default stdout")
	indented = flag.Bool("pretty", false, "pretty-print proto output (ignored for json)")
)

func main() {
	flag.Parse()
	ctx := context.Background()
	if err := run(ctx); err != nil {
		log.F(ctx, true, "%v", err)
	}
}

func run(ctx context.Context) error {
	in, err := readInput(flag.Args())
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	var decoded interface{}
	if err := json.Unmarshal(in, &decoded); err != nil {
		return fmt.Errorf("decoding input as JSON: %w", err)
	}
	value := derive.Value(decoded)

	out, err := openOutput(*outPath)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}
	if out != os.Stdout {
		defer out.Close()
	}

	switch *format {
	case "json":
		return runJSON(value, out)
	case "proto":
		return runProto(ctx, value, out)
	default:
		return fmt.Errorf("unknown -format %q, want json or proto", *format)
	}
}

func runJSON(value stream.Value, out *os.File) error {
	enc := sjson.NewEncoder(out)
	var sink stream.Stream = enc
	if *doCheck {
		sink = validate.Wrap(sink)
	}
	if err := stream.To(sink, value); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out)
	return err
}

func runProto(ctx context.Context, value stream.Value, out *os.File) error {
	b := protostream.NewBuilder()
	var sink stream.Stream = b
	if *doCheck {
		sink = validate.Wrap(sink)
	}
	if err := stream.To(sink, value); err != nil {
		return err
	}
	opts := protojson.MarshalOptions{Multiline: *indented, Indent: "  "}
	text, err := opts.Marshal(b.Result())
	if err != nil {
		return fmt.Errorf("rendering proto result: %w", err)
	}
	_, err = out.Write(append(text, '\n'))
	return err
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 0 {
		return ioutil.ReadAll(os.Stdin)
	}
	return ioutil.ReadFile(args[0])
}

func openOutput(path string) (*os.File, error) {
	if path == "" {
		return os.Stdout, nil
	}
	return os.Create(path)
}
