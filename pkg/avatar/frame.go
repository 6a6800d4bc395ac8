package avatar

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-avatar/pkg/rig"
)

// BonePose is the world transform of one bone.
type BonePose struct {
	Name     string
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// Frame is everything a renderer needs to draw one tick.
type Frame struct {
	AvatarID    string
	Seq         uint64
	Clock       time.Duration
	RootYaw     float64
	Bones       []BonePose
	Expressions map[string]float64
	Talking     bool
}

// Renderer draws frames. It is called on the render goroutine once per tick.
type Renderer interface {
	RenderFrame(ctx context.Context, f Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, f Frame) error

// RenderFrame calls fn.
func (fn RendererFunc) RenderFrame(ctx context.Context, f Frame) error {
	return fn(ctx, f)
}

func snapshotBones(skel *rig.Skeleton) []BonePose {
	skel.UpdateWorld()
	bones := make([]BonePose, skel.Len())
	for i := range bones {
		w := skel.WorldTransform(i)
		bones[i] = BonePose{
			Name:     skel.Bone(i).Name,
			Position: w.Position,
			Rotation: w.Rotation,
		}
	}
	return bones
}
