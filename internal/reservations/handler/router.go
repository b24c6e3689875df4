package handler

import (
	"calendra/pkg/contracts"

	"github.com/julienschmidt/httprouter"
)

// Routes mounts several handlers on one router.
type Routes []contracts.Handler

func (rs Routes) RegisterRoutes(router *httprouter.Router) {
	for _, h := range rs {
		h.RegisterRoutes(router)
	}
}
