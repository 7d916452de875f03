package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	texttemplate "text/template"

	"donorwall/config"
)

//go:embed templates/donor_wall.html templates/donor_wall.css
var templateFS embed.FS

var (
	wallPageTmpl = template.Must(template.ParseFS(templateFS, "templates/donor_wall.html"))
	wallCSSTmpl  = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/donor_wall.css"))
)

const maxWallDonors = 5000

var positionStyles = map[string]string{
	"top":    "top: 0; left: 50%; transform: translateX(-50%);",
	"center": "top: 50%; left: 50%; transform: translate(-50%, -50%);",
	"bottom": "bottom: 0; left: 50%; transform: translateX(-50%);",
	"left":   "top: 50%; left: 0; transform: translateY(-50%);",
	"right":  "top: 50%; right: 0; transform: translateY(-50%);",
}

type wallPage struct {
	Names   []string
	Display bool
	Wall    config.WallConfig
}

type wallStyle struct {
	config.WallConfig
	PositionStyle string
	FlexDirection string
	MaskGradient  string
	ItemMargin    string
	Keyframes     string
}

func (s *Server) donorWall(w http.ResponseWriter, r *http.Request) {
	s.renderWall(w, r, false)
}

// donorWallDisplay is the kiosk variant: no navigation bar.
func (s *Server) donorWallDisplay(w http.ResponseWriter, r *http.Request) {
	s.renderWall(w, r, true)
}

func (s *Server) renderWall(w http.ResponseWriter, r *http.Request, display bool) {
	donors, err := s.store.ListDonors(r.Context(), maxWallDonors, 0)
	if err != nil {
		s.logger.Error().Err(err).Msg("donor wall")
		http.Error(w, "failed to load donors", http.StatusInternalServerError)
		return
	}

	names := make([]string, 0, len(donors))
	for _, d := range donors {
		names = append(names, d.Name)
	}

	var buf bytes.Buffer
	if err := wallPageTmpl.Execute(&buf, wallPage{Names: names, Display: display, Wall: s.wall}); err != nil {
		s.logger.Error().Err(err).Msg("render donor wall")
		http.Error(w, "failed to render donor wall", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (s *Server) donorWallStyles(w http.ResponseWriter, r *http.Request) {
	style := wallStyle{
		WallConfig:    s.wall,
		PositionStyle: positionStyles["center"],
		FlexDirection: "column",
		MaskGradient:  "linear-gradient(to bottom, transparent 0%, black 18%, black 82%, transparent 100%)",
		ItemMargin:    "50px 0",
		Keyframes:     "scrollY",
	}
	if p, ok := positionStyles[s.wall.ScrollPosition]; ok {
		style.PositionStyle = p
	}
	if s.wall.Horizontal() {
		style.FlexDirection = "row"
		style.MaskGradient = "linear-gradient(to right, transparent 0%, black 18%, black 82%, transparent 100%)"
		style.ItemMargin = "0 10px"
		style.Keyframes = "scrollX"
	}

	var buf bytes.Buffer
	if err := wallCSSTmpl.Execute(&buf, style); err != nil {
		s.logger.Error().Err(err).Msg("render donor wall styles")
		http.Error(w, "failed to render styles", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}
