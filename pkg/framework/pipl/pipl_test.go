package pipl

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

type prop struct {
	key  string
	data []byte
}

func buildPiPL(order binary.AppendByteOrder, props ...prop) []byte {
	w := filterapi.NewStreamWriter(order)
	w.WriteInt16(1)
	w.WriteInt32(0)
	w.WriteInt32(int32(len(props)))
	for _, p := range props {
		w.WriteOSType(filterapi.HostSignature)
		w.WriteOSType(filterapi.MakeOSType(p.key))
		w.WriteInt32(0)
		w.WriteInt32(int32(len(p.data)))
		w.Write(p.data)
		w.Align(4)
	}
	return w.Bytes()
}

func osType(order binary.AppendByteOrder, s string) []byte {
	return order.AppendUint32(nil, uint32(filterapi.MakeOSType(s)))
}

func pstr(s string) []byte { return append([]byte{byte(len(s))}, s...) }

func hstm(order binary.AppendByteOrder) []byte {
	w := filterapi.NewStreamWriter(order)
	w.WriteInt32(0)
	w.WriteOSType(filterapi.MakeOSType("Fltr"))
	w.WriteOSType(filterapi.MakeOSType("Lvls"))
	w.WriteInt16(16000)
	w.WriteCString("com.example.levels")
	return w.Bytes()
}

func levelsProps(order binary.AppendByteOrder) []prop {
	return []prop{
		{"kind", osType(order, "8BFM")},
		{"name", pstr("Levels...")},
		{"catg", pstr("Adjust")},
		{"vers", order.AppendUint32(nil, 0x00040000)},
		{"8664", []byte("LevelsMain\x00")},
		{"ma64", []byte("LevelsMainArm\x00")},
		// RGB (3) and Gray16 (10)
		{"mode", []byte{0x10, 0x20}},
		{"fici", []byte{
			1, 1, 0, 0,
			1, 1, 0, 0,
			0, 0, 0, 0,
			2, 1, 0x02, 0,
			2, 1, 0, 0,
			0, 0, 0, 0,
			0, 0, 0, 0,
		}},
		{"hstm", hstm(order)},
	}
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		name  string
		write binary.AppendByteOrder
		read  binary.ByteOrder
	}{
		{"LittleEndian", binary.LittleEndian, binary.LittleEndian},
		{"BigEndian", binary.BigEndian, binary.BigEndian},
	} {
		t.Run(tc.name, func(t *testing.T) {
			info, err := Parse(buildPiPL(tc.write, levelsProps(tc.write)...), tc.read)
			require.NoError(t, err)

			assert.True(t, info.IsFilter())
			assert.Equal(t, "Levels...", info.Name)
			assert.Equal(t, "Adjust", info.Category)
			assert.Equal(t, int32(0x00040000), info.Version)
			assert.Equal(t, "LevelsMain", info.EntryPoints[KeyWin64])
			assert.Equal(t, "LevelsMainArm", info.EntryPoints[KeyMacARM64])
			assert.Len(t, info.FilterCases, 7)
			assert.Len(t, info.Properties, 9)

			require.NotNil(t, info.Terminology)
			assert.Equal(t, filterapi.MakeOSType("Lvls"), info.Terminology.Event)
			assert.Equal(t, int16(16000), info.Terminology.ID)
			assert.Equal(t, "com.example.levels", info.Terminology.Scope)
		})
	}
}

func TestSupports(t *testing.T) {
	info, err := Parse(buildPiPL(binary.LittleEndian, levelsProps(binary.LittleEndian)...), binary.LittleEndian)
	require.NoError(t, err)

	assert.True(t, info.SupportsMode(filterapi.ModeRGBColor))
	assert.True(t, info.SupportsMode(filterapi.ModeGray16))
	assert.False(t, info.SupportsMode(filterapi.ModeCMYKColor))
	assert.False(t, info.SupportsMode(filterapi.ModeRGB96))

	assert.True(t, info.Supports(filterapi.ModeRGBColor, filterapi.FilterCaseFlatImageNoSelection))
	assert.False(t, info.Supports(filterapi.ModeRGBColor, filterapi.FilterCaseFloatingSelection))
	assert.False(t, info.Supports(filterapi.ModeCMYKColor, filterapi.FilterCaseFlatImageNoSelection))
	assert.False(t, info.Supports(filterapi.ModeRGBColor, filterapi.FilterCaseUnsupported))

	c, ok := info.Case(filterapi.FilterCaseEditableTransparencyNoSelection)
	require.True(t, ok)
	assert.Equal(t, BlackMat, c.Input)
	assert.NotZero(t, c.Flags1&FlagWorksWithBlankData)

	bare, err := Parse(buildPiPL(binary.LittleEndian, prop{"kind", osType(binary.LittleEndian, "8BFM")}), binary.LittleEndian)
	require.NoError(t, err)
	assert.True(t, bare.Supports(filterapi.ModeLabColor, filterapi.FilterCaseProtectedTransparencyWithSelection))
	_, err = bare.Entry()
	assert.ErrorIs(t, err, ErrNoEntry)
}

func TestParseErrors(t *testing.T) {
	data := buildPiPL(binary.LittleEndian, levelsProps(binary.LittleEndian)...)
	_, err := Parse(data[:30], binary.LittleEndian)
	assert.ErrorIs(t, err, filterapi.ErrShortResource)

	bad := append([]byte(nil), data...)
	binary.LittleEndian.PutUint32(bad[2:], 7)
	_, err = Parse(bad, binary.LittleEndian)
	assert.ErrorIs(t, err, ErrBadVersion)
}

type rsrc struct {
	typ  string
	id   uint32
	data []byte
}

// buildRsrc lays out a resource section: root directory, per-type and per-language
// directories, type names, data entries and payloads.
func buildRsrc(base uint32, res []rsrc) []byte {
	align4 := func(n int) int { return (n + 3) &^ 3 }
	n := len(res)
	rootSize := 16 + 8*n
	typeDir := func(i int) int { return rootSize + i*48 }
	langDir := func(i int) int { return typeDir(i) + 24 }

	namesStart := rootSize + 48*n
	nameOff := make([]int, n)
	off := namesStart
	for i, r := range res {
		nameOff[i] = off
		off += 2 + 2*len(r.typ)
	}
	entriesStart := align4(off)
	dataOff := make([]int, n)
	off = entriesStart + 16*n
	for i, r := range res {
		off = align4(off)
		dataOff[i] = off
		off += len(r.data)
	}

	buf := make([]byte, off)
	le := binary.LittleEndian
	le.PutUint16(buf[12:], uint16(n))
	for i, r := range res {
		le.PutUint32(buf[16+8*i:], 0x80000000|uint32(nameOff[i]))
		le.PutUint32(buf[20+8*i:], 0x80000000|uint32(typeDir(i)))

		td := typeDir(i)
		le.PutUint16(buf[td+14:], 1)
		le.PutUint32(buf[td+16:], r.id)
		le.PutUint32(buf[td+20:], 0x80000000|uint32(langDir(i)))

		ld := langDir(i)
		le.PutUint16(buf[ld+14:], 1)
		le.PutUint32(buf[ld+16:], 0x409)
		le.PutUint32(buf[ld+20:], uint32(entriesStart+16*i))

		chars := utf16.Encode([]rune(r.typ))
		le.PutUint16(buf[nameOff[i]:], uint16(len(chars)))
		for j, c := range chars {
			le.PutUint16(buf[nameOff[i]+2+2*j:], c)
		}

		e := entriesStart + 16*i
		le.PutUint32(buf[e:], base+uint32(dataOff[i]))
		le.PutUint32(buf[e+4:], uint32(len(r.data)))
		copy(buf[dataOff[i]:], r.data)
	}
	return buf
}

// buildPE wraps a resource section in the smallest PE image debug/pe accepts.
func buildPE(rsrcData []byte, base uint32) []byte {
	le := binary.LittleEndian
	const peOff, rawOff = 64, 128
	buf := make([]byte, rawOff+len(rsrcData))
	buf[0], buf[1] = 'M', 'Z'
	le.PutUint32(buf[0x3c:], peOff)
	copy(buf[peOff:], "PE\x00\x00")

	fh := peOff + 4
	le.PutUint16(buf[fh:], 0x8664)
	le.PutUint16(buf[fh+2:], 1)

	sh := fh + 20
	copy(buf[sh:], ".rsrc")
	le.PutUint32(buf[sh+8:], uint32(len(rsrcData)))
	le.PutUint32(buf[sh+12:], base)
	le.PutUint32(buf[sh+16:], uint32(len(rsrcData)))
	le.PutUint32(buf[sh+20:], rawOff)

	copy(buf[rawOff:], rsrcData)
	return buf
}

func TestReadPE(t *testing.T) {
	const base = 0x4000
	piplData := buildPiPL(binary.LittleEndian, levelsProps(binary.LittleEndian)...)
	aeteData := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	img := buildPE(buildRsrc(base, []rsrc{
		{"PIPL", 16000, piplData},
		{"AETE", 16000, aeteData},
	}), base)

	res, err := ReadPE(bytes.NewReader(img))
	require.NoError(t, err)
	require.Len(t, res.PiPL, 1)
	assert.Equal(t, piplData, res.PiPL[0].Data)
	assert.Equal(t, uint32(16000), res.PiPL[0].ID)

	a, ok := res.FindAETE(16000)
	require.True(t, ok)
	assert.Equal(t, aeteData, a.Data)
	_, ok = res.FindAETE(1)
	assert.False(t, ok)

	_, err = ReadPE(bytes.NewReader(buildPE(buildRsrc(base, []rsrc{{"ICON", 1, []byte{1}}}), base)))
	assert.ErrorIs(t, err, ErrNoResource)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("PE", func(t *testing.T) {
		const base = 0x2000
		data := buildPiPL(binary.LittleEndian, levelsProps(binary.LittleEndian)...)
		path := filepath.Join(dir, "Levels.8bf")
		require.NoError(t, os.WriteFile(path, buildPE(buildRsrc(base, []rsrc{{"PIPL", 16000, data}}), base), 0o644))

		info, res, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "Levels...", info.Name)
		assert.Equal(t, binary.LittleEndian, res.Order)
	})

	t.Run("Sidecar", func(t *testing.T) {
		path := filepath.Join(dir, "levels.so")
		require.NoError(t, os.WriteFile(path, []byte("\x7fELF"), 0o644))
		require.NoError(t, os.WriteFile(SidecarPath(path), buildPiPL(binary.BigEndian, levelsProps(binary.BigEndian)...), 0o644))

		info, res, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "Adjust", info.Category)
		assert.Equal(t, binary.BigEndian, res.Order)
	})

	t.Run("NotFilter", func(t *testing.T) {
		path := filepath.Join(dir, "format.so")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		require.NoError(t, os.WriteFile(SidecarPath(path), buildPiPL(binary.BigEndian, prop{"kind", osType(binary.BigEndian, "8BIF")}), 0o644))

		_, _, err := Load(path)
		assert.ErrorIs(t, err, ErrNotFilter)
	})

	t.Run("Missing", func(t *testing.T) {
		path := filepath.Join(dir, "nothing.so")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		_, _, err := Load(path)
		assert.Error(t, err)
	})
}
