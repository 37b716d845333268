package web

import "net/http"

type legacyRoute struct {
	pattern string
	handler http.HandlerFunc
}

// legacyRoutes maps the URLs of the previous admin UI onto the current
// handlers. They stay scoped to the property in the path.
func legacyRoutes(s *Server) []legacyRoute {
	return []legacyRoute{
		{"GET /properties/{pid}/customer/{id}/{$}", s.handleAPIGetStay},
		{"POST /properties/{pid}/customer/{id}/delete/{$}", s.handleAPIDeleteStay},
		{"GET /properties/{pid}/customers/{$}", s.handleListStays},
	}
}
