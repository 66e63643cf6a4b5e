package services

import (
	"reflect"
	"testing"

	"github.com/stonefell/toolforge-web-ui/internal/models"
)

const sampleStream = "data: {\"type\": \"step\", \"icon\": \"🔍\", \"content\": \"Analyzing request\"}\n\n" +
	"data: {\"type\": \"step\", \"content\": \"Creating tool\"}\n\n" +
	"data: {\"type\": \"heartbeat\", \"timestamp\": 1719216000.5}\n\n" +
	"data: {\"type\": \"done\", \"content\": \"Here is the **tool**\", \"agents\": [\"coder\"], \"tools\": [\"fetch_url\"]}\n\n"

var sampleEvents = []models.StreamEvent{
	{Kind: models.EventProgress, Icon: "🔍", Text: "Analyzing request"},
	{Kind: models.EventProgress, Icon: "📋", Text: "Creating tool"},
	{Kind: models.EventCompletion, Text: "Here is the **tool**", Agents: []string{"coder"}, Tools: []string{"fetch_url"}},
}

func TestStreamDecoderSegmentation(t *testing.T) {
	raw := []byte(sampleStream)

	tests := []struct {
		name      string
		chunkSize int
	}{
		{name: "Single chunk", chunkSize: len(raw)},
		{name: "Byte at a time", chunkSize: 1},
		{name: "Small chunks", chunkSize: 3},
		{name: "Mid icon chunks", chunkSize: 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dec streamDecoder
			var got []models.StreamEvent
			for start := 0; start < len(raw); start += tt.chunkSize {
				end := start + tt.chunkSize
				if end > len(raw) {
					end = len(raw)
				}
				got = append(got, dec.feed(raw[start:end])...)
			}
			dec.finish()

			if !reflect.DeepEqual(got, sampleEvents) {
				t.Errorf("feed() events = %v, want %v", got, sampleEvents)
			}
		})
	}
}

func TestStreamDecoderDropsMalformedLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{
			name:  "Invalid json payload",
			input: "data: {not json}\ndata: {\"type\": \"step\", \"content\": \"ok\"}\n",
			want:  1,
		},
		{
			name:  "Line without marker",
			input: ": comment line\nretry: 3000\ndata: {\"type\": \"step\", \"content\": \"ok\"}\n",
			want:  1,
		},
		{
			name:  "Empty payload",
			input: "data:\ndata:   \n",
			want:  0,
		},
		{
			name:  "Unknown event type",
			input: "data: {\"type\": \"telemetry\", \"content\": \"x\"}\n",
			want:  0,
		},
		{
			name:  "Crlf terminated",
			input: "data: {\"type\": \"step\", \"content\": \"ok\"}\r\n",
			want:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dec streamDecoder
			got := dec.feed([]byte(tt.input))
			if len(got) != tt.want {
				t.Errorf("feed() decoded %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestStreamDecoderKeepsIncompleteLine(t *testing.T) {
	var dec streamDecoder

	if got := dec.feed([]byte("data: {\"type\": \"step\", ")); got != nil {
		t.Errorf("feed() on partial line = %v, want nil", got)
	}
	got := dec.feed([]byte("\"content\": \"joined\"}\n"))
	if len(got) != 1 {
		t.Fatalf("feed() decoded %d events, want 1", len(got))
	}
	if got[0].Text != "joined" {
		t.Errorf("feed() event text = %q, want %q", got[0].Text, "joined")
	}
}

func TestStreamDecoderFinishDiscardsResidue(t *testing.T) {
	var dec streamDecoder

	dec.feed([]byte("data: {\"type\": \"done\", \"content\": \"truncated\""))
	dec.finish()

	if got := dec.feed([]byte("}\n")); got != nil {
		t.Errorf("feed() after finish = %v, want nil", got)
	}
}
