package media

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProbeOutput(t *testing.T) {
	out := []byte(`{
  "streams": [
    {"codec_type": "audio"},
    {"codec_type": "video", "width": 1920, "height": 1080}
  ],
  "format": {"duration": "12.500000"}
}`)
	result, err := parseProbeOutput(out)
	require.NoError(t, err)
	require.Equal(t, 12.5, result.DurationSec)
	require.Equal(t, 1920, result.Width)
	require.Equal(t, 1080, result.Height)

	_, err = parseProbeOutput([]byte(`{"format":{"duration":"abc"}}`))
	require.Error(t, err)
	_, err = parseProbeOutput([]byte(`not json`))
	require.Error(t, err)
}
