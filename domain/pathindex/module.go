package pathindex

import "go.uber.org/fx"

// Module provides the path index repository. Builds are orchestrated by
// the snapshot domain; classification is served through the index API.
var Module = fx.Module("pathindex",
	fx.Provide(NewRepository),
)
