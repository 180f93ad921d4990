package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/colorspace"
	"github.com/justyntemme/filterhost/pkg/framework/suite"
)

func TestGetProperty(t *testing.T) {
	img := newMemImage(3, 2, 4)
	img.info.Transparency = true
	s := newTestSession(t, &script{}, img)
	sig := filterapi.HostSignature

	n, _, err := s.GetProperty(sig, filterapi.PropNumberOfChannels, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	mode, _, err := s.GetProperty(sig, filterapi.PropImageMode, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(filterapi.ModeRGBColor), mode)

	_, name, err := s.GetProperty(sig, filterapi.PropChannelName, 1)
	require.NoError(t, err)
	assert.Equal(t, "Green", string(name))

	_, name, err = s.GetProperty(sig, filterapi.PropChannelName, 3)
	require.NoError(t, err)
	assert.Equal(t, "Transparency", string(name))

	_, _, err = s.GetProperty(sig, filterapi.PropChannelName, 7)
	assert.ErrorIs(t, err, ErrPropertyUndefined)

	_, title, err := s.GetProperty(sig, filterapi.PropTitle, 0)
	require.NoError(t, err)
	assert.Equal(t, "Untitled", string(title))

	nudge, _, err := s.GetProperty(sig, filterapi.PropBigNudgeH, 0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, filterapi.Fixed(nudge).Float())

	id, _, err := s.GetProperty(sig, filterapi.PropDocumentID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(s.ID().ID()), id)

	_, _, err = s.GetProperty(filterapi.MakeOSType("ABCD"), filterapi.PropTitle, 0)
	assert.ErrorIs(t, err, ErrPropertyUndefined)

	_, _, err = s.GetProperty(sig, filterapi.MakeOSType("zzzz"), 0)
	assert.ErrorIs(t, err, ErrPropertyUndefined)
}

func TestSetProperty(t *testing.T) {
	s := newTestSession(t, &script{}, newMemImage(1, 1, 3))
	sig := filterapi.HostSignature

	require.NoError(t, s.SetProperty(sig, filterapi.PropCopyright, 0, 1, nil))
	v, _, err := s.GetProperty(sig, filterapi.PropCopyright, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	url := []byte("https://example.com/filter")
	require.NoError(t, s.SetProperty(sig, filterapi.PropURL, 0, 0, url))
	url[0] = 'x'
	_, got, err := s.GetProperty(sig, filterapi.PropURL, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/filter", string(got))

	assert.ErrorIs(t, s.SetProperty(sig, filterapi.PropTitle, 0, 0, []byte("mine")), ErrPropertyUndefined)
}

func TestColorServicesConvert(t *testing.T) {
	s := newTestSession(t, &script{}, newMemImage(1, 1, 3))

	info := &filterapi.ColorServicesInfo{
		Selector:        filterapi.ColorServicesConvertColor,
		SourceSpace:     int16(colorspace.RGB),
		ResultSpace:     int16(colorspace.HSB),
		ColorComponents: [4]int16{255, 0, 0, 0},
	}
	require.Equal(t, filterapi.NoErr, s.ColorServices(info, nil))
	assert.Equal(t, [4]int16{0, 255, 255, 0}, info.ColorComponents)
	assert.Equal(t, filterapi.Boolean(1), info.ResultGamutInfoValid)

	info = &filterapi.ColorServicesInfo{
		Selector:        filterapi.ColorServicesChooseColor,
		SourceSpace:     int16(colorspace.RGB),
		ResultSpace:     filterapi.ColorServicesChosenSpace,
		ColorComponents: [4]int16{10, 20, 30, 0},
	}
	require.Equal(t, filterapi.NoErr, s.ColorServices(info, nil))
	assert.Equal(t, int16(colorspace.RGB), info.ResultSpace)
	assert.Equal(t, [4]int16{10, 20, 30, 0}, info.ColorComponents)

	info = &filterapi.ColorServicesInfo{Selector: 9}
	assert.Equal(t, filterapi.ParamErr, s.ColorServices(info, nil))
}

func TestColorServicesSpecialColor(t *testing.T) {
	img := newMemImage(1, 1, 3)
	img.info.Background = filterapi.RGBColor{Blue: 65535}
	s := newTestSession(t, &script{}, img)

	info := &filterapi.ColorServicesInfo{
		Selector:          filterapi.ColorServicesGetSpecialColor,
		ResultSpace:       int16(colorspace.RGB),
		SelectorParameter: uintptr(filterapi.SpecialColorBackground),
	}
	require.Equal(t, filterapi.NoErr, s.ColorServices(info, nil))
	assert.Equal(t, [4]int16{0, 0, 255, 0}, info.ColorComponents)

	info.SelectorParameter = 5
	assert.Equal(t, filterapi.ParamErr, s.ColorServices(info, nil))
}

func TestColorServicesSamplePoint(t *testing.T) {
	img := newMemImage(3, 3, 3)
	s := newTestSession(t, &script{}, img)

	info := &filterapi.ColorServicesInfo{
		Selector:    filterapi.ColorServicesSamplePoint,
		ResultSpace: filterapi.ColorServicesChosenSpace,
	}
	require.Equal(t, filterapi.NoErr, s.ColorServices(info, &filterapi.Point{V: 1, H: 2}))
	assert.Equal(t, [4]int16{int16(img.at(2, 1, 0)), int16(img.at(2, 1, 1)), int16(img.at(2, 1, 2)), 0}, info.ColorComponents)
	assert.Zero(t, s.fetches, "sampling is not a region request")

	assert.Equal(t, filterapi.ErrInvalidSamplePoint, s.ColorServices(info, &filterapi.Point{V: 3, H: 0}))
	assert.Equal(t, filterapi.ParamErr, s.ColorServices(info, nil))
}

func TestSuiteNegotiation(t *testing.T) {
	s := newTestSession(t, &script{}, newMemImage(1, 1, 3))

	h, err := s.AcquireSuite(filterapi.SuiteHandle, 2)
	require.NoError(t, err)
	assert.Same(t, s.Handles(), h)

	_, err = s.AcquireSuite(filterapi.SuiteHandle, 9)
	assert.ErrorIs(t, err, suite.ErrSuiteNotAvailable)
	_, err = s.AcquireSuite("Photoshop Channel Ports Suite", 1)
	assert.ErrorIs(t, err, suite.ErrSuiteNotAvailable)

	_, ok := s.Colors()
	assert.False(t, ok, "color space suite is created on first acquire")
	c, err := s.AcquireSuite(filterapi.SuiteColorSpace, 1)
	require.NoError(t, err)
	table, ok := s.Colors()
	require.True(t, ok)
	assert.Same(t, table, c)

	require.NoError(t, s.ReleaseSuite(filterapi.SuiteColorSpace, 1))
	_, ok = s.Colors()
	assert.False(t, ok)
	assert.ErrorIs(t, s.ReleaseSuite(filterapi.SuiteColorSpace, 1), suite.ErrNotAcquired)
}

func TestSuitesReleasedAtTeardown(t *testing.T) {
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorParameters: func(s *Session) int16 {
			if _, err := s.AcquireSuite(filterapi.SuiteColorSpace, 1); err != nil {
				return int16(filterapi.ParamErr)
			}
			if _, err := s.AcquireSuite(filterapi.SuiteProperty, 1); err != nil {
				return int16(filterapi.ParamErr)
			}
			return 0
		},
	}}
	s := newTestSession(t, sc, newMemImage(1, 1, 3))
	_, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, s.Suites().Live())
	_, ok := s.Colors()
	assert.False(t, ok)
}

func TestTickCount(t *testing.T) {
	s := newTestSession(t, &script{}, newMemImage(1, 1, 1))
	assert.Less(t, s.TickCount(), uint32(60*60))
}
