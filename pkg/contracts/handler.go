package contracts

import "github.com/julienschmidt/httprouter"

// Handler is one API surface. The application mounts every Handler on a
// single router behind the shared middleware chain.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
