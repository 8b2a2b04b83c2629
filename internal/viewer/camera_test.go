package viewer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func near(a, b mgl32.Vec3) bool {
	return a.ApproxEqualThreshold(b, 1e-4)
}

func TestNewDefaultCamera(t *testing.T) {
	cam := NewDefaultCamera(mgl32.Vec3{1, 2, 3}, 800, 600)

	if cam.Position != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("Expected position (1,2,3), got %v", cam.Position)
	}
	if !near(cam.Front, mgl32.Vec3{0, 0, -1}) {
		t.Errorf("Expected front (0,0,-1), got %v", cam.Front)
	}
	if !near(cam.Right, mgl32.Vec3{1, 0, 0}) || !near(cam.Up, mgl32.Vec3{0, 1, 0}) {
		t.Errorf("Unexpected basis right=%v up=%v", cam.Right, cam.Up)
	}
	if cam.Projection.At(3, 3) != 0.0 {
		t.Error("Perspective projection should have w=0 at (3,3)")
	}
}

func TestCameraMove(t *testing.T) {
	cam := NewDefaultCamera(mgl32.Vec3{}, 800, 600)

	cam.Move(Forward, 1, false)
	if !near(cam.Position, mgl32.Vec3{0, 0, -10}) {
		t.Errorf("Forward: got %v", cam.Position)
	}
	cam.Move(Right, 0.5, false)
	if !near(cam.Position, mgl32.Vec3{5, 0, -10}) {
		t.Errorf("Right: got %v", cam.Position)
	}
	cam.Move(Down, 0.2, true)
	if !near(cam.Position, mgl32.Vec3{5, -5, -10}) {
		t.Errorf("Boosted down: got %v", cam.Position)
	}
	cam.Move(Backward, 1, false)
	cam.Move(Left, 0.5, false)
	cam.Move(Up, 0.2, true)
	if !near(cam.Position, mgl32.Vec3{}) {
		t.Errorf("Expected to return to origin, got %v", cam.Position)
	}
}

func TestCameraLookAt(t *testing.T) {
	cam := NewDefaultCamera(mgl32.Vec3{}, 800, 600)

	cam.LookAt(mgl32.Vec3{10, 0, 0})
	if !near(cam.Front, mgl32.Vec3{1, 0, 0}) {
		t.Errorf("Expected front (1,0,0), got %v", cam.Front)
	}

	cam.LookAt(mgl32.Vec3{0, -5, -5})
	want := mgl32.Vec3{0, -1, -1}.Normalize()
	if !near(cam.Front, want) {
		t.Errorf("Expected front %v, got %v", want, cam.Front)
	}
	if r := cam.Ray(); r.Origin != cam.Position || !near(r.Direction, cam.Front) {
		t.Errorf("Ray does not follow the camera: %+v", r)
	}
}

func TestCameraMouseClampsPitch(t *testing.T) {
	cam := NewDefaultCamera(mgl32.Vec3{}, 800, 600)

	cam.ProcessMouseMovement(0, 10000, true)
	if cam.Pitch != 89 {
		t.Errorf("Expected pitch clamped to 89, got %f", cam.Pitch)
	}
	cam.InvertMouse = true
	cam.ProcessMouseMovement(0, 10000, true)
	if cam.Pitch != -89 {
		t.Errorf("Expected inverted pitch clamped to -89, got %f", cam.Pitch)
	}
}

func TestScreenRayThroughCentre(t *testing.T) {
	cam := NewDefaultCamera(mgl32.Vec3{3, 4, 5}, 800, 600)

	ray := cam.ScreenRay(mgl32.Vec2{400, 300}, 800, 600)
	if !near(ray.Direction, cam.Front) {
		t.Errorf("Expected centre ray along %v, got %v", cam.Front, ray.Direction)
	}
}

func TestFrustumCulling(t *testing.T) {
	cam := NewDefaultCamera(mgl32.Vec3{}, 800, 600)
	frustum := cam.CalculateFrustum()

	if !frustum.IntersectsSphere(mgl32.Vec3{0, 0, -20}, 1) {
		t.Error("Sphere in front of the camera was culled")
	}
	if frustum.IntersectsSphere(mgl32.Vec3{0, 0, 20}, 1) {
		t.Error("Sphere behind the camera was kept")
	}
	if frustum.IntersectsSphere(mgl32.Vec3{0, 0, -5000}, 1) {
		t.Error("Sphere beyond the far plane was kept")
	}
}
