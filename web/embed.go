// Package web embeds the browser viewer served at / and /static/.
package web

import "embed"

// Content holds the viewer: index.html draws frames from the
// /api/v1/stream/frames event stream onto a canvas.
//
//go:embed index.html app.js styles.css
var Content embed.FS
