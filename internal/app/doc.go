// Package app contains the core application logic. It loads a pipeline,
// drives the frame graph through generations and frames on the simulated
// device, and reports the plan and device statistics, decoupled from any
// specific entrypoint like a CLI.
package app
