package testutil

// DeferredPipeline is a small deferred-shading pipeline for the simulated
// device. Under the default cull policy debug_overlay is culled because
// nothing reads the overlay it creates.
const DeferredPipeline = `
variable "width" { default = 4 }
variable "height" { default = 4 }

retained "texture2d" "backbuffer" {
  width  = var.width
  height = var.height
  format = "bgra8"
}

task "gbuffer" {
  create "texture2d" "albedo" {
    width  = var.width
    height = var.height
  }
  create "buffer" "depth" { size = 16 }
}

task "debug_overlay" {
  read = ["albedo"]
  create "texture2d" "overlay" {
    width  = var.width
    height = var.height
    format = "r8"
  }
}

task "lighting" {
  read = ["albedo", "depth"]
  create "texture2d" "hdr" {
    width  = var.width
    height = var.height
    format = "rgba16f"
  }
}

task "tonemap" {
  read  = ["hdr"]
  write = ["backbuffer"]
}
`
