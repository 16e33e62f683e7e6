package particle

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Binary dump layout, little endian:
//
//	magic    [4]byte "PFD1"
//	mode     uint32
//	header   [binaryHeaderLen]float64
//	sections uint32
//	then per section: axis uint32, count uint32, count rows of float64
//
// A row is the sample value (1, 4, 2 or 1 floats for class, rotation,
// translation, defocus) followed by weight and aux weight.
const (
	binaryMagic     = "PFD1"
	binaryHeaderLen = 4 + 3 + 3 + 1 + 4 + 8 + 8 + 4 + 1
)

// WriteText writes a line-oriented dump of every axis.
func (f *Filter) WriteText(w io.Writer) error {
	return f.writeText(w, Axes[:])
}

// WriteAxisText writes the header and the samples of one axis.
func (f *Filter) WriteAxisText(w io.Writer, a Axis) error {
	a.check()
	return f.writeText(w, []Axis{a})
}

func (f *Filter) writeText(w io.Writer, axes []Axis) error {
	bw := bufio.NewWriter(w)
	s := f.Snapshot()
	rs, ts := s.Spread.Rotation, s.Spread.Translation

	fmt.Fprintf(bw, "mode %s\n", s.Mode)
	fmt.Fprintf(bw, "counts %d %d %d %d\n", s.Counts.C, s.Counts.R, s.Counts.T, s.Counts.D)
	fmt.Fprintf(bw, "score %g\n", s.Score)
	fmt.Fprintf(bw, "peak %g %g %g %g\n", s.PeakFactors[0], s.PeakFactors[1], s.PeakFactors[2], s.PeakFactors[3])
	fmt.Fprintf(bw, "rotation_spread %g %g %g\n", rs.K1, rs.K2, rs.K3)
	fmt.Fprintf(bw, "translation_spread %g %g %g\n", ts.S0, ts.S1, ts.Rho)
	fmt.Fprintf(bw, "defocus_spread %g\n", s.Spread.Defocus)
	writeEstimateText(bw, "rank1", s.Rank1)
	writeEstimateText(bw, "rank1_prev", s.Rank1Prev)
	fmt.Fprintf(bw, "diff %g %g %g %g\n", s.Diffs[0], s.Diffs[1], s.Diffs[2], s.Diffs[3])

	for _, a := range axes {
		ws := f.axis(a).weights()
		for i := 0; i < ws.Len(); i++ {
			switch a {
			case AxisClass:
				fmt.Fprintf(bw, "C %d %d", i, f.class.values[i])
			case AxisRotation:
				q := f.rot.values[i]
				fmt.Fprintf(bw, "R %d %.17g %.17g %.17g %.17g", i, q.Real, q.Imag, q.Jmag, q.Kmag)
			case AxisTranslation:
				v := f.trans.values[i]
				fmt.Fprintf(bw, "T %d %.17g %.17g", i, v.X, v.Y)
			case AxisDefocus:
				fmt.Fprintf(bw, "D %d %.17g", i, f.def.values[i])
			}
			fmt.Fprintf(bw, " %.17g %.17g\n", ws.w[i], ws.u[i])
		}
	}
	return bw.Flush()
}

func writeEstimateText(w io.Writer, label string, e Estimate) {
	q, t := e.Rotation, e.Translation
	fmt.Fprintf(w, "%s %d %g %g %g %g %g %g %g\n", label, e.Class,
		q.Real, q.Imag, q.Jmag, q.Kmag, t.X, t.Y, e.Defocus)
}

// WriteBinary writes the binary dump of every axis.
func (f *Filter) WriteBinary(w io.Writer) error {
	return f.writeBinary(w, Axes[:])
}

// WriteAxisBinary writes the binary header and the samples of one axis.
func (f *Filter) WriteAxisBinary(w io.Writer, a Axis) error {
	a.check()
	return f.writeBinary(w, []Axis{a})
}

func (f *Filter) writeBinary(w io.Writer, axes []Axis) error {
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian
	s := f.Snapshot()

	if _, err := bw.WriteString(binaryMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, le, uint32(s.Mode)); err != nil {
		return err
	}
	if err := binary.Write(bw, le, binaryHeader(s)); err != nil {
		return err
	}
	if err := binary.Write(bw, le, uint32(len(axes))); err != nil {
		return err
	}
	for _, a := range axes {
		ws := f.axis(a).weights()
		if err := binary.Write(bw, le, [2]uint32{uint32(a), uint32(ws.Len())}); err != nil {
			return err
		}
		for i := 0; i < ws.Len(); i++ {
			var row []float64
			switch a {
			case AxisClass:
				row = []float64{float64(f.class.values[i])}
			case AxisRotation:
				q := f.rot.values[i]
				row = []float64{q.Real, q.Imag, q.Jmag, q.Kmag}
			case AxisTranslation:
				row = []float64{f.trans.values[i].X, f.trans.values[i].Y}
			case AxisDefocus:
				row = []float64{f.def.values[i]}
			}
			row = append(row, ws.w[i], ws.u[i])
			if err := binary.Write(bw, le, row); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// binaryHeader flattens counts, spreads, rank-1 values, diffs and score.
func binaryHeader(s Snapshot) [binaryHeaderLen]float64 {
	rs, ts := s.Spread.Rotation, s.Spread.Translation
	h := []float64{
		float64(s.Counts.C), float64(s.Counts.R), float64(s.Counts.T), float64(s.Counts.D),
		rs.K1, rs.K2, rs.K3,
		ts.S0, ts.S1, ts.Rho,
		s.Spread.Defocus,
		s.PeakFactors[0], s.PeakFactors[1], s.PeakFactors[2], s.PeakFactors[3],
	}
	for _, e := range []Estimate{s.Rank1, s.Rank1Prev} {
		h = append(h, float64(e.Class),
			e.Rotation.Real, e.Rotation.Imag, e.Rotation.Jmag, e.Rotation.Kmag,
			e.Translation.X, e.Translation.Y, e.Defocus)
	}
	h = append(h, s.Diffs[:]...)
	h = append(h, s.Score)

	var out [binaryHeaderLen]float64
	copy(out[:], h)
	return out
}
