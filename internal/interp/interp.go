// Package interp turns control points into a path. Both peers invoke it with
// identical, synchronized inputs (points, method, resolution); every method
// walks its arithmetic in a fixed order so the outputs are bit-identical on
// both sides.
package interp

import (
	"errors"
	"fmt"
)

const (
	Linear   = "linear"
	Lagrange = "lagrange"
	Spline   = "spline"
)

var ErrTooFewPoints = errors.New("interp: need at least two control points")

// Interpolate samples resolution points along the curve defined by the
// control points. Points must be sorted by ascending, unique X.
func Interpolate(points [][2]float64, method string, resolution int) ([][2]float64, error) {
	if len(points) < 2 {
		return nil, ErrTooFewPoints
	}
	if resolution < 2 {
		resolution = 2
	}
	switch method {
	case Linear:
		return linear(points, resolution), nil
	case Lagrange:
		return lagrange(points, resolution), nil
	case Spline:
		return spline(points, resolution), nil
	default:
		return nil, fmt.Errorf("interp: unknown method %q", method)
	}
}

// sampleXs returns resolution X values evenly spaced over the point span.
func sampleXs(points [][2]float64, resolution int) []float64 {
	x0 := points[0][0]
	x1 := points[len(points)-1][0]
	step := (x1 - x0) / float64(resolution-1)
	xs := make([]float64, resolution)
	for i := range xs {
		xs[i] = x0 + float64(i)*step
	}
	xs[resolution-1] = x1
	return xs
}

func linear(points [][2]float64, resolution int) [][2]float64 {
	xs := sampleXs(points, resolution)
	out := make([][2]float64, resolution)
	seg := 0
	for i, x := range xs {
		for seg < len(points)-2 && x > points[seg+1][0] {
			seg++
		}
		p0, p1 := points[seg], points[seg+1]
		t := 0.0
		if dx := p1[0] - p0[0]; dx != 0 {
			t = (x - p0[0]) / dx
		}
		out[i] = [2]float64{x, p0[1] + t*(p1[1]-p0[1])}
	}
	return out
}

// lagrange evaluates the full-degree Lagrange polynomial at each sample.
// Runge's phenomenon near the edges is a gameplay feature, not a bug.
func lagrange(points [][2]float64, resolution int) [][2]float64 {
	xs := sampleXs(points, resolution)
	out := make([][2]float64, resolution)
	for i, x := range xs {
		y := 0.0
		for j := range points {
			basis := 1.0
			for k := range points {
				if k == j {
					continue
				}
				basis *= (x - points[k][0]) / (points[j][0] - points[k][0])
			}
			y += points[j][1] * basis
		}
		out[i] = [2]float64{x, y}
	}
	return out
}

// spline evaluates a natural cubic spline through the points using the
// standard tridiagonal solve for the second derivatives.
func spline(points [][2]float64, resolution int) [][2]float64 {
	n := len(points)
	if n == 2 {
		return linear(points, resolution)
	}

	h := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		h[i] = points[i+1][0] - points[i][0]
	}

	// Solve for second derivatives m with natural boundary m[0]=m[n-1]=0.
	alpha := make([]float64, n)
	for i := 1; i < n-1; i++ {
		alpha[i] = 3*(points[i+1][1]-points[i][1])/h[i] - 3*(points[i][1]-points[i-1][1])/h[i-1]
	}
	l := make([]float64, n)
	mu := make([]float64, n)
	z := make([]float64, n)
	l[0] = 1
	for i := 1; i < n-1; i++ {
		l[i] = 2*(points[i+1][0]-points[i-1][0]) - h[i-1]*mu[i-1]
		mu[i] = h[i] / l[i]
		z[i] = (alpha[i] - h[i-1]*z[i-1]) / l[i]
	}
	l[n-1] = 1

	c := make([]float64, n)
	b := make([]float64, n-1)
	d := make([]float64, n-1)
	for j := n - 2; j >= 0; j-- {
		c[j] = z[j] - mu[j]*c[j+1]
		b[j] = (points[j+1][1]-points[j][1])/h[j] - h[j]*(c[j+1]+2*c[j])/3
		d[j] = (c[j+1] - c[j]) / (3 * h[j])
	}

	xs := sampleXs(points, resolution)
	out := make([][2]float64, resolution)
	seg := 0
	for i, x := range xs {
		for seg < n-2 && x > points[seg+1][0] {
			seg++
		}
		dx := x - points[seg][0]
		y := points[seg][1] + b[seg]*dx + c[seg]*dx*dx + d[seg]*dx*dx*dx
		out[i] = [2]float64{x, y}
	}
	return out
}
