// Package pipeline loads frame graph declarations from HCL files and declares
// them on a framegraph.FrameGraph.
//
// A pipeline file contains three kinds of top-level blocks:
//
//	variable "width" { default = 1280 }
//
//	retained "texture2d" "backbuffer" {
//	  width  = var.width
//	  height = var.height
//	}
//
//	task "gbuffer" {
//	  create "texture2d" "albedo" {
//	    width  = var.width
//	    height = var.height
//	  }
//	}
//
//	task "lighting" {
//	  read  = ["albedo"]
//	  write = ["backbuffer"]
//	}
//
// Resource bodies are decoded into the description type registered for the
// block's type label. Tasks are declared in file order, and within a task
// creations come first, then reads, then writes.
package pipeline
