package uptime

import "go.uber.org/fx"

var Module = fx.Module("uptime.tracker",
	fx.Provide(NewTracker),
)
