package streaming

import (
	"github.com/go-gl/mathgl/mgl32"
)

// View is the camera state the Manager needs to rank chunks: the eye
// position and the combined view-projection matrix. The renderer's camera
// produces one View per frame; streaming never reaches back into the
// camera itself.
type View struct {
	Eye      mgl32.Vec3
	ViewProj mgl32.Mat4
}

// frustum holds the six planes of a view frustum as (nx,ny,nz,d) with
// normals pointing inward, so a point p is inside a plane when
// n·p + d >= 0.
type frustum [6]mgl32.Vec4

// frustumFromViewProj extracts the six clip planes from a view-projection
// matrix (Gribb/Hartmann) and normalizes them so plane evaluations are
// world-space distances, which makes sphere tests exact.
func frustumFromViewProj(vp mgl32.Mat4) frustum {
	row := func(i int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(i, 0), vp.At(i, 1), vp.At(i, 2), vp.At(i, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	var f frustum
	f[0] = r3.Add(r0)     // left
	f[1] = r3.Sub(r0)     // right
	f[2] = r3.Add(r1)     // bottom
	f[3] = r3.Sub(r1)     // top
	f[4] = r3.Add(r2)     // near
	f[5] = r3.Sub(r2)     // far
	for i := range f {
		n := mgl32.Vec3{f[i].X(), f[i].Y(), f[i].Z()}
		l := n.Len()
		if l > 0 {
			f[i] = f[i].Mul(1 / l)
		}
	}
	return f
}

// containsSphere reports whether a sphere intersects the frustum. A sphere
// entirely behind any plane is outside; everything else is treated as
// visible (the test is conservative at frustum corners, which only makes
// the wanted set slightly larger, never smaller).
func (f frustum) containsSphere(center mgl32.Vec3, radius float32) bool {
	for _, p := range f {
		if p.X()*center.X()+p.Y()*center.Y()+p.Z()*center.Z()+p.W() < -radius {
			return false
		}
	}
	return true
}
