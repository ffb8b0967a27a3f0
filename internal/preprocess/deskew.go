// Package preprocess corrects page skew before OCR.
package preprocess

import (
	"image"
	"image/color"
	"log/slog"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

const (
	MethodProjectionProfile = "projection_profile"

	DefaultMinAbsAngle = 0.7
	DefaultMaxAbsAngle = 15.0
	defaultMaxSide     = 800

	coarseStep = 0.5
	fineStep   = 0.1
	inkLevel   = 128
)

// Metadata describes the skew correction of one page.
type Metadata struct {
	Page          int     `json:"page"`
	Applied       bool    `json:"applied"`
	DetectedAngle float64 `json:"detected_angle_deg"`
	AppliedAngle  float64 `json:"applied_angle_deg"`
	Method        string  `json:"method"`
	MinAbsAngle   float64 `json:"min_abs_angle_deg"`
	MaxAbsAngle   float64 `json:"max_abs_angle_deg"`
}

// Report is the per-document deskew summary.
type Report struct {
	Enabled bool       `json:"enabled"`
	Pages   []Metadata `json:"pages"`
}

type Options struct {
	Enabled     bool
	MinAbsAngle float64 // smaller detected angles are left alone
	MaxAbsAngle float64 // larger detected angles are treated as misdetections
	MaxSide     int     // estimation works on a copy scaled to this size
}

func DefaultOptions() Options {
	return Options{
		Enabled:     true,
		MinAbsAngle: DefaultMinAbsAngle,
		MaxAbsAngle: DefaultMaxAbsAngle,
		MaxSide:     defaultMaxSide,
	}
}

type Deskewer struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Deskewer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAbsAngle <= 0 {
		opts.MaxAbsAngle = DefaultMaxAbsAngle
	}
	if opts.MinAbsAngle <= 0 {
		opts.MinAbsAngle = DefaultMinAbsAngle
	}
	if opts.MaxSide <= 0 {
		opts.MaxSide = defaultMaxSide
	}
	return &Deskewer{opts: opts, logger: logger}
}

func (d *Deskewer) Enabled() bool { return d.opts.Enabled }

// Correct estimates the skew of img and rotates it level when the angle is
// within [MinAbsAngle, MaxAbsAngle]. Otherwise img is returned unchanged.
func (d *Deskewer) Correct(img image.Image) (image.Image, Metadata) {
	meta := Metadata{
		Method:      MethodProjectionProfile,
		MinAbsAngle: d.opts.MinAbsAngle,
		MaxAbsAngle: d.opts.MaxAbsAngle,
	}
	if !d.opts.Enabled {
		return img, meta
	}

	angle := EstimateAngle(img, d.opts.MaxSide, d.opts.MaxAbsAngle)
	meta.DetectedAngle = round4(angle)
	abs := math.Abs(angle)
	if abs < d.opts.MinAbsAngle || abs > d.opts.MaxAbsAngle {
		d.logger.Debug("preprocess.deskew.skip", "angle", meta.DetectedAngle)
		return img, meta
	}

	meta.Applied = true
	meta.AppliedAngle = meta.DetectedAngle
	d.logger.Debug("preprocess.deskew.applied", "angle", meta.AppliedAngle)
	return Rotate(img, angle), meta
}

// EstimateAngle returns the text line angle in degrees (positive means lines
// descend to the right) by maximizing the sharpness of the horizontal
// projection profile over [-limit, limit].
func EstimateAngle(img image.Image, maxSide int, limit float64) float64 {
	pts := inkPoints(downscale(img, maxSide))
	if len(pts) == 0 {
		return 0
	}

	best, bestScore := 0.0, profileScore(pts, 0)
	search := func(from, to, step float64) {
		for a := from; a <= to+1e-9; a += step {
			if s := profileScore(pts, a); s > bestScore {
				best, bestScore = a, s
			}
		}
	}
	search(-limit, limit, coarseStep)
	search(math.Max(-limit, best-coarseStep), math.Min(limit, best+coarseStep), fineStep)
	return best
}

func downscale(img image.Image, maxSide int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := 1.0
	if m := max(w, h); maxSide > 0 && m > maxSide {
		scale = float64(maxSide) / float64(m)
	}
	dst := image.NewGray(image.Rect(0, 0, max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

type point struct{ x, y float64 }

func inkPoints(g *image.Gray) []point {
	var pts []point
	b := g.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if g.GrayAt(x, y).Y < inkLevel {
				pts = append(pts, point{float64(x), float64(y)})
			}
		}
	}
	return pts
}

// profileScore projects ink onto the axis perpendicular to lines at angle deg
// and returns the sum of squared bin counts.
func profileScore(pts []point, deg float64) float64 {
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	bins := make(map[int]int)
	for _, p := range pts {
		bins[int(math.Floor(-p.x*sin+p.y*cos))]++
	}
	var s float64
	for _, n := range bins {
		s += float64(n * n)
	}
	return s
}

// Rotate turns img by -deg degrees around its center onto a white canvas
// large enough to hold every source pixel.
func Rotate(img image.Image, deg float64) *image.RGBA {
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	sb := img.Bounds()
	w, h := float64(sb.Dx()), float64(sb.Dy())
	nw := int(math.Ceil(h*math.Abs(sin) + w*math.Abs(cos)))
	nh := int(math.Ceil(h*math.Abs(cos) + w*math.Abs(sin)))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	scx := float64(sb.Min.X) + w/2
	scy := float64(sb.Min.Y) + h/2
	dcx, dcy := float64(nw)/2, float64(nh)/2
	s2d := f64.Aff3{
		cos, sin, dcx - (cos*scx + sin*scy),
		-sin, cos, dcy - (-sin*scx + cos*scy),
	}
	draw.BiLinear.Transform(dst, s2d, img, sb, draw.Src, nil)
	return dst
}

func round4(f float64) float64 {
	return math.Round(f*1e4) / 1e4
}
