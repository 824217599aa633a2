package api

import (
	"bytes"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"gonum.org/v1/plot/vg"

	"github.com/dickie-roper/rolling-shutter/internal/httputil"
	"github.com/dickie-roper/rolling-shutter/internal/photo"
	"github.com/dickie-roper/rolling-shutter/internal/render"
	"github.com/dickie-roper/rolling-shutter/internal/scene"
	"github.com/dickie-roper/rolling-shutter/internal/shutter"
)

const (
	defaultImagePixels = 576
	minImagePixels     = 64
	maxImagePixels     = 2048
)

type handlers struct {
	photos   PhotoSource
	maxSteps int
	logger   *slog.Logger
}

// sceneFromRequest parses and validates the exposure parameters.
func (h *handlers) sceneFromRequest(r *http.Request) (scene.Config, error) {
	cfg, err := scene.FromQuery(r.URL.Query(), scene.Default())
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if cfg.Steps > h.maxSteps {
		return cfg, &scene.ConfigError{Field: "steps", Value: cfg.Steps, Reason: "exceeds limit of " + strconv.Itoa(h.maxSteps)}
	}
	return cfg, nil
}

// assemble fetches the photograph for r, writing the error response itself
// when it fails.
func (h *handlers) assemble(w http.ResponseWriter, r *http.Request) (*photo.Result, bool) {
	cfg, err := h.sceneFromRequest(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return nil, false
	}

	res, err := h.photos.GetOrAssemble(r.Context(), cfg)
	if err != nil {
		switch {
		case scene.IsConfigError(err):
			httputil.WriteError(w, http.StatusBadRequest, err)
		case r.Context().Err() != nil:
			// Client went away; nothing to write.
		default:
			h.logger.Error("assembly failed", "key", cfg.Key(), "error", err)
			httputil.WriteMessage(w, http.StatusInternalServerError, "assembly failed")
		}
		return nil, false
	}
	return res, true
}

// timeline serves the shutter sweep samples.
// GET /api/v1/timeline?steps=5&duration=1
func (h *handlers) timeline(w http.ResponseWriter, r *http.Request) {
	cfg, err := scene.FromQuery(r.URL.Query(), scene.Default())
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if cfg.Steps > h.maxSteps {
		httputil.WriteError(w, http.StatusBadRequest, &scene.ConfigError{Field: "steps", Value: cfg.Steps, Reason: "exceeds limit of " + strconv.Itoa(h.maxSteps)})
		return
	}

	tl, err := shutter.Build(cfg.Steps, cfg.ShutterDuration)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	samples := tl.Samples()
	resp := timelineResponse{
		Steps:    tl.Len(),
		Duration: tl.Duration(),
		Samples:  make([]sampleJSON, len(samples)),
	}
	for i, s := range samples {
		resp.Samples[i] = sampleJSON{Position: s.Position, Elapsed: s.Elapsed}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// photograph serves the assembled points as JSON. With series=true the
// unfiltered per-sample coordinates are included; non-finite values are
// encoded as null.
// GET /api/v1/photograph?steps=1000&frequency=1&blades=3&series=false
func (h *handlers) photograph(w http.ResponseWriter, r *http.Request) {
	withSeries := false
	if v := r.URL.Query().Get("series"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, &scene.ConfigError{Field: "series", Value: v, Reason: "must be a boolean"})
			return
		}
		withSeries = b
	}

	res, ok := h.assemble(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, buildPhotographResponse(res, withSeries))
}

// photographPNG renders the composite image.
// GET /api/v1/photograph.png?steps=1000&blades=3&size=576
func (h *handlers) photographPNG(w http.ResponseWriter, r *http.Request) {
	px := defaultImagePixels
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < minImagePixels || n > maxImagePixels {
			httputil.WriteError(w, http.StatusBadRequest, &scene.ConfigError{
				Field:  "size",
				Value:  v,
				Reason: "must be an integer between " + strconv.Itoa(minImagePixels) + " and " + strconv.Itoa(maxImagePixels),
			})
			return
		}
		px = n
	}

	res, ok := h.assemble(w, r)
	if !ok {
		return
	}

	opts := render.DefaultOptions()
	opts.Size = vg.Length(px) / vg.Length(opts.DPI) * vg.Inch

	p, err := render.Photograph(res, opts)
	if err != nil {
		h.logger.Error("render failed", "error", err)
		httputil.WriteMessage(w, http.StatusInternalServerError, "render failed")
		return
	}

	// Encode fully before writing so a failure can still become a 500.
	var buf bytes.Buffer
	if err := render.WritePNG(&buf, p, opts); err != nil {
		h.logger.Error("png encode failed", "error", err)
		httputil.WriteMessage(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// cacheStats serves the photo cache counters.
func (h *handlers) cacheStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.photos.Stats())
}

func buildPhotographResponse(res *photo.Result, withSeries bool) photographResponse {
	resp := photographResponse{
		Steps:      res.Config.Steps,
		Duration:   res.Config.ShutterDuration,
		Frequency:  res.Config.FrequencyHz,
		Points:     res.PointCount(),
		Degenerate: res.Degenerate,
		Blades:     make([]bladeJSON, len(res.Photographs)),
	}
	for i, ph := range res.Photographs {
		b := bladeJSON{
			Index:  ph.BladeIndex,
			Phase:  ph.Blade.Phase,
			Points: make([][2]float64, len(ph.Points)),
		}
		for j, pt := range ph.Points {
			b.Points[j] = [2]float64{pt.X(), pt.Y()}
		}
		if withSeries && i < len(res.Series) {
			coords := res.Series[i].Coordinates
			b.Series = make([]nullableFloat, len(coords))
			for j, c := range coords {
				b.Series[j] = nullableFloat(c)
			}
		}
		resp.Blades[i] = b
	}
	return resp
}

type timelineResponse struct {
	Steps    int          `json:"steps"`
	Duration float64      `json:"duration"`
	Samples  []sampleJSON `json:"samples"`
}

type sampleJSON struct {
	Position float64 `json:"position"`
	Elapsed  float64 `json:"elapsed"`
}

type photographResponse struct {
	Steps      int         `json:"steps"`
	Duration   float64     `json:"duration"`
	Frequency  float64     `json:"frequency"`
	Points     int         `json:"points"`
	Degenerate int         `json:"degenerate"`
	Blades     []bladeJSON `json:"blades"`
}

type bladeJSON struct {
	Index  int             `json:"index"`
	Phase  float64         `json:"phase"`
	Points [][2]float64    `json:"points"`
	Series []nullableFloat `json:"series,omitempty"`
}

// nullableFloat encodes NaN and ±Inf as JSON null.
type nullableFloat float64

func (f nullableFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}
