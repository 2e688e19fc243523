package server

import (
	"github.com/makestack-ai/makestack/internal/credit"
	"github.com/makestack-ai/makestack/internal/ratelimit"
	"github.com/makestack-ai/makestack/internal/uptime"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	credit.Module,
	uptime.Module,
	ratelimit.Module,
	fx.Provide(
		NewEngine,
		NewServer,
	),
	fx.Invoke(func(s *Server) {
		s.RegisterRoutes()
	}),
	fx.Invoke(RunHTTP),
)
