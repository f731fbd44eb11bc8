package controllers

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/assignment-engine/pkg/application"
	"github.com/iota-uz/assignment-engine/pkg/realtime"
	"github.com/iota-uz/assignment-engine/pkg/ws"
)

// RealtimeController exposes the websocket endpoint. Clients identify with
// the same headers as the REST API and are joined to their personal channel;
// board channels come from the `channels` query parameter.
type RealtimeController struct {
	app application.Application
}

func NewRealtimeController(app application.Application) application.Controller {
	return &RealtimeController{app: app}
}

func (c *RealtimeController) Key() string {
	return "/ws"
}

func (c *RealtimeController) Register(r *mux.Router) {
	r.Handle("/ws", c.app.Websocket()).Methods(http.MethodGet)
}

// ConnectHook is installed as the hub's OnConnect callback. It rejects
// unauthenticated upgrades and subscribes the connection to its channels.
func ConnectHook(r *http.Request, hub *ws.Hub, conn *ws.Connection) error {
	userID, err := uuid.Parse(r.Header.Get(HeaderUserID))
	if err != nil {
		return errors.Wrap(err, "websocket requires "+HeaderUserID)
	}

	hub.JoinChannel(realtime.UserChannel(userID), conn)

	for _, channel := range strings.Split(r.URL.Query().Get("channels"), ",") {
		channel = strings.TrimSpace(channel)
		if channel == "" {
			continue
		}
		// Only board channels may be requested; personal feeds are join-once
		// by identity.
		if strings.HasPrefix(channel, "unit/") || strings.HasPrefix(channel, "engagement/") {
			hub.JoinChannel(channel, conn)
		}
	}
	return nil
}
