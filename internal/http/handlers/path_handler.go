// README: Path selection trigger: runs the engine over due routes and echoes them back.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mihir-logicrays/drive-it/internal/modules/geo"
	"github.com/mihir-logicrays/drive-it/internal/modules/matching"
	"github.com/mihir-logicrays/drive-it/internal/modules/route"
)

// PathSelector is implemented by *route.Service.
type PathSelector interface {
	ProcessDue(ctx context.Context, now time.Time) ([]route.Route, route.Summary, error)
}

type PathHandler struct {
	paths PathSelector
	now   func() time.Time
}

func NewPathHandler(paths PathSelector) *PathHandler {
	return &PathHandler{paths: paths, now: time.Now}
}

type selectReq struct {
	// Now overrides the reference time of the due-route window.
	Now string `json:"now"`
}

type areaView struct {
	Geography *geo.Polygon `json:"geography"`
}

type userView struct {
	FCMToken string `json:"fcm_token"`
}

type passengerView struct {
	UserID         string          `json:"user_id"`
	DesiredPickup  json.RawMessage `json:"desired_pickup"`
	DesiredDropoff json.RawMessage `json:"desired_dropoff"`
	User           userView        `json:"user"`
}

type routeView struct {
	ID              string          `json:"id"`
	DepartureTime   time.Time       `json:"departure_time"`
	IsConfigured    bool            `json:"is_configured_route"`
	OriginArea      areaView        `json:"origin_area"`
	DestinationArea areaView        `json:"destination_area"`
	RouteStopUsers  []passengerView `json:"route_stop_users"`
}

type selectResp struct {
	Routes  []routeView   `json:"routes"`
	Summary route.Summary `json:"summary"`
}

// Select handles POST /api/paths/select. The body is required and must be
// a JSON object; an empty object uses the current time.
func (h *PathHandler) Select(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, http.StatusBadRequest, "unreadable body")
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		writeError(c, http.StatusBadRequest, "missing event body")
		return
	}
	var req selectReq
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	now := h.now()
	if req.Now != "" {
		if now, err = time.Parse(time.RFC3339, req.Now); err != nil {
			writeError(c, http.StatusBadRequest, "now must be RFC3339")
			return
		}
	}

	routes, summary, err := h.paths.ProcessDue(c.Request.Context(), now)
	if err != nil {
		writeRouteError(c, err)
		return
	}

	resp := selectResp{Routes: make([]routeView, 0, len(routes)), Summary: summary}
	for _, r := range routes {
		v, err := toRouteView(r)
		if err != nil {
			writeRouteError(c, err)
			return
		}
		resp.Routes = append(resp.Routes, v)
	}
	writeJSON(c, http.StatusOK, resp)
}

func toRouteView(r route.Route) (routeView, error) {
	v := routeView{
		ID:              string(r.ID),
		DepartureTime:   r.DepartureTime,
		IsConfigured:    r.Configured,
		OriginArea:      areaView{Geography: r.OriginArea},
		DestinationArea: areaView{Geography: r.DestinationArea},
		RouteStopUsers:  make([]passengerView, 0, len(r.Passengers)),
	}
	for _, p := range r.Passengers {
		pv, err := toPassengerView(p)
		if err != nil {
			return routeView{}, err
		}
		v.RouteStopUsers = append(v.RouteStopUsers, pv)
	}
	return v, nil
}

func toPassengerView(p matching.Passenger) (passengerView, error) {
	pickup, err := geo.PointGeoJSON(p.DesiredPickup)
	if err != nil {
		return passengerView{}, err
	}
	dropoff, err := geo.PointGeoJSON(p.DesiredDropoff)
	if err != nil {
		return passengerView{}, err
	}
	return passengerView{
		UserID:         string(p.UserID),
		DesiredPickup:  pickup,
		DesiredDropoff: dropoff,
		User:           userView{FCMToken: p.PushToken},
	}, nil
}
