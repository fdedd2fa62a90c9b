package app

import (
	"io"
	"net/http"
	"time"

	"github.com/arolang/aro/internal/registry"
	"github.com/arolang/aro/modules/compute"
	"github.com/arolang/aro/modules/display"
	"github.com/arolang/aro/modules/events"
	"github.com/arolang/aro/modules/extract"
	"github.com/arolang/aro/modules/httpfetch"
	"github.com/arolang/aro/modules/respond"
	"github.com/arolang/aro/modules/storage"
	"github.com/arolang/aro/modules/transition"
)

// coreModules assembles the built-in action set. Show writes to the host's
// output; the HTTP actions share one client.
func coreModules(outW io.Writer) []registry.Module {
	return []registry.Module{
		&extract.Module{},
		&compute.Module{},
		&storage.Module{},
		&transition.Module{},
		&events.Module{},
		&respond.Module{},
		&display.Module{Output: outW},
		&httpfetch.Module{Client: &http.Client{Timeout: 30 * time.Second}},
	}
}
