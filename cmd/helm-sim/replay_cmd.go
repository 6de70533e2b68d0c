package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/packet"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/session"
)

//go:embed intents.schema.json
var intentsSchema string

const intentsSchemaURL = "https://helm.schemas.local/sim/intents.schema.json"

// script is an intent script. Seed and settings override the config.
type script struct {
	Seed     *uint32           `json:"seed,omitempty"`
	Settings *policy.Settings  `json:"settings,omitempty"`
	Intents  []packet.Envelope `json:"intents"`
}

func compileIntentsSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(intentsSchemaURL, bytes.NewReader([]byte(intentsSchema))); err != nil {
		return nil, fmt.Errorf("intent schema load failed: %w", err)
	}
	return c.Compile(intentsSchemaURL)
}

// parseScript validates data against the embedded schema and decodes it.
func parseScript(data []byte) (script, error) {
	schema, err := compileIntentsSchema()
	if err != nil {
		return script{}, err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return script{}, fmt.Errorf("script is not JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return script{}, fmt.Errorf("script rejected: %w", err)
	}
	var s script
	if err := json.Unmarshal(data, &s); err != nil {
		return script{}, fmt.Errorf("decode script: %w", err)
	}
	return s, nil
}

// runReplayCmd implements `helm-sim replay`: every intent in the script is
// applied in order to a fresh session.
func runReplayCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("replay", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		flags      commonFlags
		scriptPath string
	)
	flags.register(cmd)
	cmd.StringVar(&scriptPath, "script", "", "Path to an intent script (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if scriptPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --script is required")
		return 2
	}

	data, err := os.ReadFile(scriptPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	s, err := parseScript(data)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	e, err := setup(ctx, flags, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer e.close(ctx)

	ctx, end := e.track(ctx, "replay")
	defer end(nil)

	opts := e.sessionOptions()
	if s.Seed != nil && flags.seed < 0 && !flags.randomSeed {
		opts.Seed = *s.Seed
	}
	if s.Settings != nil {
		opts.Settings = *s.Settings
	}
	c, err := session.New(ctx, opts)
	if err != nil {
		return fail(stderr, end, err)
	}

	outcomes := make([]packet.Outcome, 0, len(s.Intents))
	for i, env := range s.Intents {
		in, err := env.Intent(c.PacketFor)
		if err != nil {
			return fail(stderr, end, fmt.Errorf("intent %d: %w", i, err))
		}
		out, err := c.Apply(ctx, in)
		if err != nil {
			return fail(stderr, end, fmt.Errorf("intent %d: %w", i, err))
		}
		outcomes = append(outcomes, out)
	}

	v, err := c.Verify(ctx)
	if err != nil {
		return fail(stderr, end, err)
	}
	report := newSessionReport(c, v, outcomes)
	if flags.jsonOutput {
		if err := writeJSON(stdout, report); err != nil {
			return fail(stderr, end, err)
		}
	} else {
		report.print(stdout)
	}
	return report.exitCode()
}
