package camera

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cappedDevice grants any request up to max, clamping each dimension.
type cappedDevice struct {
	max     Resolution
	current Resolution
	setErr  error
}

func (d *cappedDevice) SetResolution(r Resolution) error {
	if d.setErr != nil {
		return d.setErr
	}
	d.current = Resolution{Width: min(r.Width, d.max.Width), Height: min(r.Height, d.max.Height)}
	return nil
}

func (d *cappedDevice) Resolution() Resolution    { return d.current }
func (d *cappedDevice) FrameRate() float64        { return 30 }
func (d *cappedDevice) ReadFrame() (Frame, error) { return Frame{}, ErrEndOfStream }
func (d *cappedDevice) Close() error              { return nil }

func TestNegotiateClampsToDevice(t *testing.T) {
	t.Parallel()

	dev := &cappedDevice{max: Resolution{Width: 1920, Height: 1080}}
	got, err := Negotiate(dev, Resolution{Width: 4000, Height: 4000})
	require.NoError(t, err)
	assert.Equal(t, Resolution{Width: 1920, Height: 1080}, got)
}

func TestNegotiateGrantsSupportedRequest(t *testing.T) {
	t.Parallel()

	dev := &cappedDevice{max: Resolution{Width: 1920, Height: 1080}}
	got, err := Negotiate(dev, DefaultResolution)
	require.NoError(t, err)
	assert.Equal(t, DefaultResolution, got)
}

func TestNegotiateErrors(t *testing.T) {
	t.Parallel()

	_, err := Negotiate(&cappedDevice{max: DefaultResolution}, Resolution{Width: 0, Height: 10})
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = Negotiate(&cappedDevice{setErr: boom}, DefaultResolution)
	assert.ErrorIs(t, err, boom)

	// A device that reports nothing usable.
	_, err = Negotiate(&cappedDevice{}, DefaultResolution)
	assert.Error(t, err)
}

func TestParseResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Resolution
		wantErr bool
	}{
		{in: "1280x720", want: Resolution{1280, 720}},
		{in: " 640X480 ", want: Resolution{640, 480}},
		{in: "1080 x 720", want: Resolution{1080, 720}},
		{in: "1280", wantErr: true},
		{in: "axb", wantErr: true},
		{in: "0x720", wantErr: true},
		{in: "-1x720", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseResolution(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolutionString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1080x720", DefaultResolution.String())
}
