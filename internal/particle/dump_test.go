package particle

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteText(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode3D, Counts{C: 2, R: 5, T: 4, D: 3}, nil)
	f.Translations().SetAux(1, 0.5)
	var buf bytes.Buffer
	require.NoError(t, f.WriteText(&buf))

	rows := map[string]int{}
	sc := bufio.NewScanner(&buf)
	var header []string
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		switch fields[0] {
		case "C", "R", "T", "D":
			rows[fields[0]]++
			if fields[0] == "T" && fields[1] == "1" {
				assert.Equal(t, "0.5", fields[len(fields)-1])
			}
		default:
			header = append(header, fields[0])
		}
	}
	assert.Equal(t, map[string]int{"C": 2, "R": 5, "T": 4, "D": 3}, rows)
	assert.Equal(t, []string{
		"mode", "counts", "score", "peak",
		"rotation_spread", "translation_spread", "defocus_spread",
		"rank1", "rank1_prev", "diff",
	}, header)
}

func TestWriteAxisText(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode2D, Counts{C: 2, R: 5, T: 4, D: 3}, nil)
	var buf bytes.Buffer
	require.NoError(t, f.WriteAxisText(&buf, AxisTranslation))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "mode 2d\ncounts 2 5 4 3\n"))
	assert.Equal(t, 4, strings.Count(out, "\nT "))
	assert.NotContains(t, out, "\nR ")
	assert.NotContains(t, out, "\nC ")
}

func TestWriteAxisBinary(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode3D, Counts{C: 2, R: 5, T: 4, D: 3}, nil)
	var buf bytes.Buffer
	require.NoError(t, f.WriteAxisBinary(&buf, AxisRotation))

	magic := make([]byte, 4)
	_, err := buf.Read(magic)
	require.NoError(t, err)
	assert.Equal(t, binaryMagic, string(magic))

	le := binary.LittleEndian
	var mode uint32
	require.NoError(t, binary.Read(&buf, le, &mode))
	assert.Equal(t, uint32(Mode3D), mode)

	var header [binaryHeaderLen]float64
	require.NoError(t, binary.Read(&buf, le, &header))
	assert.Equal(t, []float64{2, 5, 4, 3}, header[:4])
	assert.Equal(t, f.Score(), header[binaryHeaderLen-1])

	var sections uint32
	require.NoError(t, binary.Read(&buf, le, &sections))
	require.Equal(t, uint32(1), sections)

	var sec [2]uint32
	require.NoError(t, binary.Read(&buf, le, &sec))
	assert.Equal(t, [2]uint32{uint32(AxisRotation), 5}, sec)

	for i := 0; i < 5; i++ {
		var row [6]float64
		require.NoError(t, binary.Read(&buf, le, &row))
		q := f.Rotations().Value(i)
		assert.Equal(t, [6]float64{q.Real, q.Imag, q.Jmag, q.Kmag, 0.2, 1}, row)
	}
	assert.Zero(t, buf.Len())
}

func TestWriteBinarySize(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Mode2D, Counts{C: 2, R: 5, T: 4, D: 3}, nil)
	var buf bytes.Buffer
	require.NoError(t, f.WriteBinary(&buf))

	rowFloats := 2*3 + 5*6 + 4*4 + 3*3
	want := 4 + 4 + 8*binaryHeaderLen + 4 + 4*8 + 8*rowFloats
	assert.Equal(t, want, buf.Len())
}
