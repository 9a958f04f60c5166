package perception

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/tldetector/internal/geometry"
	"github.com/banshee-data/tldetector/internal/spatial"
)

type fakeTransforms struct {
	tf    *geometry.Transform
	err   error
	calls int
}

func (f *fakeTransforms) Lookup(_ context.Context, target, source string, _ time.Time, _ time.Duration) (*geometry.Transform, error) {
	f.calls++
	if target != FrameBody || source != FrameWorld {
		return nil, errors.New("unexpected frames")
	}
	return f.tf, f.err
}

type recordingClassifier struct {
	color Color
	seen  []image.Rectangle
}

func (c *recordingClassifier) Classify(img image.Image) Color {
	c.seen = append(c.seen, img.Bounds())
	return c.color
}

func straightRoute() []spatial.Waypoint {
	return []spatial.Waypoint{
		{Index: 0, Position: r3.Vec{X: 0}},
		{Index: 1, Position: r3.Vec{X: 10}},
		{Index: 2, Position: r3.Vec{X: 20}},
	}
}

func readySnapshot(lights ...TrafficLight) *Snapshot {
	now := time.Unix(1000, 0)
	s := (&Snapshot{}).WithPose(geometry.Pose{Orientation: geometry.QuaternionFromYaw(0)}, now)
	s = s.WithRoute(straightRoute(), now)
	return s.WithLights(lights, now)
}

func testFrame() *CameraFrame {
	return &CameraFrame{
		Image:      image.NewRGBA(image.Rect(0, 0, 800, 600)),
		Intrinsics: geometry.Intrinsics{FocalLengthX: 1000, FocalLengthY: 1000, ImageWidth: 800, ImageHeight: 600},
		Timestamp:  time.Unix(1000, 0),
	}
}

// ---------------------------------------------------------------------------
// Matching
// ---------------------------------------------------------------------------

func TestProcess_MissingInput(t *testing.T) {
	t.Parallel()

	now := time.Unix(0, 0)
	light := TrafficLight{ID: 1, Position: r3.Vec{X: 10}, State: Red, HasState: true}
	tests := []struct {
		name string
		snap *Snapshot
	}{
		{"nil snapshot", nil},
		{"empty", &Snapshot{}},
		{"no route", (&Snapshot{}).WithPose(geometry.Pose{}, now).WithLights([]TrafficLight{light}, now)},
		{"no pose", (&Snapshot{}).WithRoute(straightRoute(), now).WithLights([]TrafficLight{light}, now)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewPipeline(DefaultConfig(), nil, nil)
			res, err := p.Process(context.Background(), tt.snap, nil)
			require.ErrorIs(t, err, ErrMissingInput)
			assert.True(t, IsMissingInput(err))
			assert.Equal(t, NoDecision(), res)
		})
	}
}

func TestProcess_NoLights(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultConfig(), nil, nil)
	for i := 0; i < 2; i++ {
		res, err := p.Process(context.Background(), readySnapshot(), nil)
		require.ErrorIs(t, err, spatial.ErrNoCandidates)
		assert.Equal(t, -1, res.Waypoint)
		assert.Equal(t, Unknown, res.Color)
	}
}

func TestProcess_NearestLightAndWaypoint(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultConfig(), nil, nil)
	snap := readySnapshot(
		TrafficLight{ID: 7, Position: r3.Vec{X: 10, Y: 1, Z: 5}, State: Red, HasState: true},
		TrafficLight{ID: 8, Position: r3.Vec{X: 300}, State: Green, HasState: true},
	)

	res, err := p.Process(context.Background(), snap, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Waypoint)
	assert.Equal(t, Red, res.Color)
	assert.Equal(t, 7, res.LightID)
	assert.Nil(t, res.Pixel)
}

func TestProcess_NoGroundTruth(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultConfig(), nil, nil)
	res, err := p.Process(context.Background(), readySnapshot(TrafficLight{ID: 1, Position: r3.Vec{X: 19}}), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Waypoint)
	assert.Equal(t, Unknown, res.Color)
}

func TestProcess_OutOfRangeStateIsUnknown(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultConfig(), nil, nil)
	res, err := p.Process(context.Background(), readySnapshot(TrafficLight{Position: r3.Vec{X: 10}, State: Color(3), HasState: true}), nil)
	require.NoError(t, err)
	assert.Equal(t, Unknown, res.Color)
}

// ---------------------------------------------------------------------------
// Camera path
// ---------------------------------------------------------------------------

func TestProcess_CameraIsAdvisory(t *testing.T) {
	t.Parallel()

	tf := geometry.BodyTransformFromPose(geometry.Pose{Orientation: geometry.QuaternionFromYaw(0)})
	transforms := &fakeTransforms{tf: &tf}
	cls := &recordingClassifier{color: Green}
	p := NewPipeline(DefaultConfig(), cls, transforms)

	snap := readySnapshot(TrafficLight{ID: 1, Position: r3.Vec{X: 10, Z: 1}, State: Red, HasState: true})
	res, err := p.Process(context.Background(), snap, testFrame())
	require.NoError(t, err)

	assert.Equal(t, Red, res.Color, "ground truth must not be overridden")
	assert.Equal(t, Green, res.CameraColor)
	require.NotNil(t, res.Pixel)
	assert.Equal(t, 400, res.Pixel.X)
	assert.Equal(t, 600, res.Pixel.Y)

	require.Len(t, cls.seen, 1)
	assert.Equal(t, image.Rect(360, 510, 440, 600), cls.seen[0])
	assert.Equal(t, 1, transforms.calls)
}

func TestProcess_TransformFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	cls := &recordingClassifier{color: Green}
	p := NewPipeline(DefaultConfig(), cls, &fakeTransforms{err: errors.New("timed out")})

	snap := readySnapshot(TrafficLight{ID: 1, Position: r3.Vec{X: 10, Z: 1}, State: Red, HasState: true})
	res, err := p.Process(context.Background(), snap, testFrame())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Waypoint)
	assert.Equal(t, Red, res.Color)
	assert.Equal(t, Unknown, res.CameraColor)
	assert.Nil(t, res.Pixel)
	assert.Empty(t, cls.seen)
}

func TestProcess_LightBehindCameraIsNotClassified(t *testing.T) {
	t.Parallel()

	tf := geometry.BodyTransformFromPose(geometry.Pose{Position: r3.Vec{X: 15}, Orientation: geometry.QuaternionFromYaw(0)})
	cls := &recordingClassifier{color: Red}
	p := NewPipeline(DefaultConfig(), cls, &fakeTransforms{tf: &tf})

	snap := readySnapshot(TrafficLight{ID: 1, Position: r3.Vec{X: 10, Z: 1}, State: Green, HasState: true})
	res, err := p.Process(context.Background(), snap, testFrame())
	require.NoError(t, err)
	require.NotNil(t, res.Pixel)
	assert.False(t, res.Pixel.InFront())
	assert.Equal(t, Unknown, res.CameraColor)
	assert.Empty(t, cls.seen)
}

func TestPipeline_StopLines(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StopLines = [][2]float64{{1, 2}, {3, 4}}
	assert.Equal(t, [][2]float64{{1, 2}, {3, 4}}, NewPipeline(cfg, nil, nil).StopLines())
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

func TestSnapshot_CopiesAreIndependent(t *testing.T) {
	t.Parallel()

	route := straightRoute()
	base := (&Snapshot{}).WithRoute(route, time.Unix(1, 0))
	route[0].Position.X = 99
	assert.Equal(t, 0.0, base.Route[0].Position.X)

	next := base.WithPose(geometry.Pose{Position: r3.Vec{X: 1}}, time.Unix(2, 0))
	assert.Nil(t, base.Pose)
	require.NotNil(t, next.Pose)
	assert.Equal(t, time.Unix(2, 0), next.UpdatedAt)

	cleared := next.WithRoute(nil, time.Unix(3, 0))
	assert.False(t, cleared.Ready())
	assert.True(t, next.Ready())
}

// ---------------------------------------------------------------------------
// Crop
// ---------------------------------------------------------------------------

type plainImage struct{ r image.Rectangle }

func (p plainImage) ColorModel() color.Model { return color.RGBAModel }
func (p plainImage) Bounds() image.Rectangle { return p.r }
func (p plainImage) At(x, y int) color.Color { return color.RGBA{R: uint8(x), G: uint8(y), A: 255} }

func TestCropAround(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	got := CropAround(img, geometry.Pixel{X: 50, Y: 50}, 10, 20)
	require.NotNil(t, got)
	assert.Equal(t, image.Rect(40, 30, 60, 70), got.Bounds())

	got = CropAround(img, geometry.Pixel{X: 0, Y: 99}, 10, 20)
	require.NotNil(t, got)
	assert.Equal(t, image.Rect(0, 79, 10, 100), got.Bounds())

	assert.Nil(t, CropAround(img, geometry.Pixel{X: 500, Y: 50}, 10, 10))
	assert.Nil(t, CropAround(nil, geometry.Pixel{}, 10, 10))
}

func TestCropAround_CopiesWithoutSubImage(t *testing.T) {
	t.Parallel()

	got := CropAround(plainImage{r: image.Rect(0, 0, 50, 50)}, geometry.Pixel{X: 20, Y: 20}, 5, 5)
	require.NotNil(t, got)
	assert.Equal(t, image.Rect(0, 0, 10, 10), got.Bounds())
	assert.Equal(t, color.RGBA{R: 15, G: 15, A: 255}, got.At(0, 0))
}

// ---------------------------------------------------------------------------
// Color
// ---------------------------------------------------------------------------

func TestZeroColorIsRed_NoDecisionIsUnknown(t *testing.T) {
	t.Parallel()

	var zero Color
	require.Equal(t, Red, zero, "numbering follows the message; zero values read as RED")

	res := NoDecision()
	assert.Equal(t, Unknown, res.Color)
	assert.Equal(t, Unknown, res.CameraColor)
	assert.Equal(t, -1, res.Waypoint)
	assert.Equal(t, -1, res.LightID)
	assert.Nil(t, res.Pixel)

	res, err := NewPipeline(DefaultConfig(), nil, nil).Process(context.Background(), &Snapshot{}, nil)
	require.ErrorIs(t, err, ErrMissingInput)
	assert.Equal(t, NoDecision(), res)
}

func TestColor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "RED", Red.String())
	assert.Equal(t, "Color(3)", Color(3).String())
	assert.Equal(t, Unknown, Color(9).Normalize())

	for _, in := range []string{"red", " RED ", "0"} {
		c, err := ParseColor(in)
		require.NoError(t, err, in)
		assert.Equal(t, Red, c)
	}
	c, err := ParseColor("4")
	require.NoError(t, err)
	assert.Equal(t, Unknown, c)

	_, err = ParseColor("purple")
	assert.Error(t, err)

	var u Color
	require.NoError(t, u.UnmarshalText([]byte("green")))
	assert.Equal(t, Green, u)
	b, err := Yellow.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "YELLOW", string(b))
}

func TestColor_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var l TrafficLight
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"state":0,"has_state":true}`), &l))
	assert.Equal(t, Red, l.State)
	require.NoError(t, json.Unmarshal([]byte(`{"state":"GREEN"}`), &l))
	assert.Equal(t, Green, l.State)
}
