// Package render implements the ray-marching volume renderer: an orbit
// camera, material and parameter state, a software ray marcher that
// composites through whatever chunks the streaming cache has resident, and
// the frame loop that drives it.
package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"ctvolume/pkg/streaming"
)

// Camera orbit limits. Phi stays short of the poles to avoid gimbal lock;
// radius stays inside the far plane and outside the volume surface.
const (
	minPhi    = float32(-math.Pi/2 + 0.1)
	maxPhi    = float32(math.Pi/2 - 0.1)
	minRadius = float32(0.5)
	maxRadius = float32(10.0)

	fovY     = float32(math.Pi / 4)
	nearClip = float32(0.1)
	farClip  = float32(100.0)
)

// Camera is an orbit camera around a focus point, parameterized by azimuth
// (theta), elevation (phi) and distance (radius). It produces the view and
// projection matrices the ray marcher and the streaming manager consume.
type Camera struct {
	theta, phi, radius float32
	focus              mgl32.Vec3
	up                 mgl32.Vec3
	aspect             float32
}

// NewCamera creates a camera at the default pose: two units back from the
// origin, looking at it.
func NewCamera(aspect float32) *Camera {
	c := &Camera{aspect: aspect}
	c.Reset()
	return c
}

// Reset restores the default pose.
func (c *Camera) Reset() {
	c.theta = 0
	c.phi = 0
	c.radius = 2
	c.focus = mgl32.Vec3{}
	c.up = mgl32.Vec3{0, 1, 0}
}

// Rotate orbits the camera by the given azimuth and elevation deltas in
// radians. Elevation is clamped short of the poles.
func (c *Camera) Rotate(deltaTheta, deltaPhi float32) {
	c.theta += deltaTheta
	c.phi += deltaPhi
	if c.phi < minPhi {
		c.phi = minPhi
	}
	if c.phi > maxPhi {
		c.phi = maxPhi
	}
}

// Zoom moves the camera toward (positive delta) or away from the focus
// point, clamped to [0.5, 10].
func (c *Camera) Zoom(delta float32) {
	c.radius -= delta
	if c.radius < minRadius {
		c.radius = minRadius
	}
	if c.radius > maxRadius {
		c.radius = maxRadius
	}
}

// SetRadius places the camera at an absolute orbit distance, clamped like
// Zoom.
func (c *Camera) SetRadius(r float32) {
	c.radius = r
	if c.radius < minRadius {
		c.radius = minRadius
	}
	if c.radius > maxRadius {
		c.radius = maxRadius
	}
}

// SetFocus moves the orbit focus point.
func (c *Camera) SetFocus(focus mgl32.Vec3) {
	c.focus = focus
}

// Pan shifts the focus point in the camera's screen plane.
func (c *Camera) Pan(dx, dy float32) {
	forward := c.focus.Sub(c.Position()).Normalize()
	right := forward.Cross(c.up).Normalize()
	screenUp := right.Cross(forward)
	c.focus = c.focus.Add(right.Mul(dx)).Add(screenUp.Mul(dy))
}

// SetAspect updates the viewport aspect ratio after a resize.
func (c *Camera) SetAspect(aspect float32) {
	if aspect > 0 {
		c.aspect = aspect
	}
}

// Position returns the world-space eye position derived from the orbit
// parameters.
func (c *Camera) Position() mgl32.Vec3 {
	sinT, cosT := math.Sin(float64(c.theta)), math.Cos(float64(c.theta))
	sinP, cosP := math.Sin(float64(c.phi)), math.Cos(float64(c.phi))
	return mgl32.Vec3{
		c.focus.X() + c.radius*float32(cosP*sinT),
		c.focus.Y() + c.radius*float32(sinP),
		c.focus.Z() - c.radius*float32(cosP*cosT),
	}
}

// ViewMatrix returns the look-at view matrix.
func (c *Camera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.focus, c.up)
}

// ProjMatrix returns the perspective projection matrix.
func (c *Camera) ProjMatrix() mgl32.Mat4 {
	return mgl32.Perspective(fovY, c.aspect, nearClip, farClip)
}

// ViewProj returns the combined view-projection matrix.
func (c *Camera) ViewProj() mgl32.Mat4 {
	return c.ProjMatrix().Mul4(c.ViewMatrix())
}

// View packages the camera state the streaming manager consumes.
func (c *Camera) View() streaming.View {
	return streaming.View{Eye: c.Position(), ViewProj: c.ViewProj()}
}
