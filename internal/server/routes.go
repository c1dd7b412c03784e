package server

import "github.com/go-chi/chi/v5"

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/datasets", s.listDatasets)
		r.Route("/datasets/{name}", func(r chi.Router) {
			r.Post("/runs", s.runDataset)
			r.Get("/report", s.getReport)
		})

		r.Get("/lineage", s.listLineage)

		r.Get("/registry", s.listRegistry)
		r.Get("/registry/{name}", s.getRegistryEntry)
		r.Get("/registry/{name}/history", s.getRegistryHistory)

		r.Get("/events", s.streamEvents)
	})
}
