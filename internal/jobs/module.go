package jobs

import "go.uber.org/fx"

// Module is a library module: domains build their own Queue and Worker
// (see the snapshot rebuild service) and hook the worker into the fx
// lifecycle themselves.
var Module = fx.Module("jobs")
