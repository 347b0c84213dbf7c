// Package framegraph declares, compiles and executes frame graphs.
//
// A frame graph is rebuilt every generation. Tasks are declared with AddTask;
// each declaration states which resources the task creates, reads and writes.
// Compile removes tasks whose work is never observed and orders the rest.
// Execute runs the surviving tasks, realizing transient resources right
// before their first use and releasing them after their last. Clear discards
// everything and starts the next generation.
//
//	g := framegraph.New(framegraph.WithFactories(factories))
//	back, _ := framegraph.ImportRetained(g, "backbuffer", desc, swapchainImage)
//	framegraph.AddTask(g, "lighting",
//		func(p *lightingPass, b *framegraph.Builder) error {
//			var err error
//			p.target, err = framegraph.Write(b, back)
//			return err
//		},
//		func(ctx context.Context, p *lightingPass, res framegraph.Resources) error {
//			img, err := framegraph.Actual(res, p.target)
//			...
//		})
//	g.Compile(ctx)
//	g.Execute(ctx)
//	g.Clear()
//
// A FrameGraph is not safe for concurrent use.
package framegraph
