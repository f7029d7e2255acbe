package videobridge

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		debug string
		want  ErrorCategory
	}{
		{"missing file", "Resource not found.", "gstfilesrc.c: No such file", ErrCategoryResource},
		{"permission", "Could not open file for reading.", "Permission denied", ErrCategoryResource},
		{"no decoder", "Your GStreamer installation is missing a plug-in.", "no decoder available for type video/x-h265", ErrCategoryCodec},
		{"negotiation", "Internal data stream error.", "streaming stopped, reason not-negotiated", ErrCategoryCodec},
		{"malformed sample", "malformed sample", "", ErrCategoryCodec},
		{"http", "Could not connect to server", "soup http: connection refused", ErrCategoryNetwork},
		{"timeout", "Operation timed out", "", ErrCategoryNetwork},
		{"unknown", "Something odd happened", "", ErrCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.text, tt.debug))
		})
	}
}

func TestErrorCategory_String(t *testing.T) {
	assert.Equal(t, "resource", ErrCategoryResource.String())
	assert.Equal(t, "codec", ErrCategoryCodec.String())
	assert.Equal(t, "network", ErrCategoryNetwork.String())
	assert.Equal(t, "unknown", ErrCategoryUnknown.String())
	assert.Equal(t, "unknown", ErrorCategory(42).String())
}

func TestConstructionError(t *testing.T) {
	base := fmt.Errorf("%w: missing scheme", ErrMalformedURI)
	err := error(&ConstructionError{Op: "parse", URI: "movie.mp4", Err: base})

	assert.True(t, errors.Is(err, ErrMalformedURI))
	assert.Equal(t, `videobridge: parse "movie.mp4": videobridge: malformed URI: missing scheme`, err.Error())

	noURI := &ConstructionError{Op: "config", Err: ErrInvalidConfig}
	assert.Equal(t, "videobridge: config: videobridge: invalid configuration", noURI.Error())
}

func TestRuntimeError(t *testing.T) {
	err := &RuntimeError{Source: "decodebin0", Message: "decode failed", Category: ErrCategoryCodec}
	assert.Equal(t, "pipeline error [codec] from decodebin0: decode failed", err.Error())

	err.Source = ""
	assert.Equal(t, "pipeline error [codec]: decode failed", err.Error())
}
