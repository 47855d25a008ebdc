package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMode(t *testing.T) {
	assert.Equal(t, Frame, ParseMode("frame"))
	assert.Equal(t, Frame, ParseMode("iframe"))
	assert.Equal(t, Direct, ParseMode("direct"))
	assert.Equal(t, Auto, ParseMode("auto"))
	assert.Equal(t, Auto, ParseMode(""))
	assert.Equal(t, Auto, ParseMode("popup"))
}

func TestPolicy_Embed(t *testing.T) {
	p := NewPolicy(DefaultFrameHosts)

	tests := []struct {
		name string
		mode Mode
		url  string
		want bool
	}{
		{"frame always embeds", Frame, "https://example.com", true},
		{"direct never embeds", Direct, "https://script.google.com/macros/s/x/exec", false},
		{"auto apps script host", Auto, "https://script.google.com/macros/s/xyz/exec", true},
		{"auto subdomain of frame host", Auto, "https://n-abc.script.google.com/x", true},
		{"auto host case-insensitive", Auto, "https://Script.Google.Com/x", true},
		{"auto other host", Auto, "https://example.com/page", false},
		{"auto frame host only in query", Auto, "https://evil.example/?next=script.google.com", false},
		{"auto lookalike suffix", Auto, "https://notscript.google.com/x", false},
		{"auto unparsable url", Auto, "://bad", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Embed(tt.mode, tt.url))
		})
	}
}
