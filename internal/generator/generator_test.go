package generator_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cryptodaily/internal/generator"
	"cryptodaily/internal/robusthttp"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractGeneratedText(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{name: "plain text", raw: "  Momentum looks constructive.  ", want: "Momentum looks constructive.", ok: true},
		{name: "list of objects", raw: `[{"generated_text":" Range-bound day. "}]`, want: "Range-bound day.", ok: true},
		{name: "object", raw: `{"generated_text":"Watch fees."}`, want: "Watch fees.", ok: true},
		{name: "json string", raw: `"Quoted insight"`, want: "Quoted insight", ok: true},
		{name: "text with quotes inside", raw: `[{"generated_text":"He said \"hold\"."}]`, want: `He said "hold".`, ok: true},
		{name: "empty", raw: "   ", ok: false},
		{name: "error object", raw: `{"error":"Model is loading"}`, ok: false},
		{name: "list without text", raw: `[{"score":1}]`, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := generator.ExtractGeneratedText(tc.raw)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestHuggingFaceGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/org/model", r.URL.Path)
		assert.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["inputs"], "Rules first")
		assert.Contains(t, body["inputs"], "bitcoin context")

		_, _ = w.Write([]byte(`[{"generated_text":"Bitcoin is consolidating."}]`))
	}))
	defer srv.Close()

	gen, err := generator.NewHuggingFaceGenerator(
		robusthttp.NewClient(robusthttp.WithMaxRetries(0)),
		srv.URL+"/models",
		"org/model",
		"hf-token",
	)
	require.NoError(t, err)
	require.Equal(t, "huggingface", gen.Name())

	text, err := gen.Generate(context.Background(), generator.Input{
		Instructions: "Rules first",
		Prompt:       "bitcoin context",
	})
	require.NoError(t, err)
	require.Equal(t, "Bitcoin is consolidating.", text)
}

func TestHuggingFaceGeneratorRequiresToken(t *testing.T) {
	_, err := generator.NewHuggingFaceGenerator(robusthttp.NewClient(), "", "", " ")
	require.Error(t, err)
}

func TestHuggingFaceGeneratorRejectsEmptyOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	gen, err := generator.NewHuggingFaceGenerator(robusthttp.NewClient(robusthttp.WithMaxRetries(0)), srv.URL, "m", "t")
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), generator.Input{Prompt: "x"})
	require.Error(t, err)
}

func TestOpenAIGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "resp_1",
			"object": "response",
			"status": "completed",
			"output": [{
				"type": "message",
				"id": "msg_1",
				"role": "assistant",
				"status": "completed",
				"content": [{"type": "output_text", "text": "Fees are rising.", "annotations": []}]
			}]
		}`))
	}))
	defer srv.Close()

	gen, err := generator.NewOpenAIGenerator("sk-test", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)
	require.Equal(t, "openai", gen.Name())

	text, err := gen.Generate(context.Background(), generator.Input{Instructions: "be brief", Prompt: "ethereum"})
	require.NoError(t, err)
	require.Equal(t, "Fees are rising.", text)
}
