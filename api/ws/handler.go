// Package ws streams recorded book events to websocket subscribers.
package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hintbook/api/view"
	"hintbook/service"
)

const (
	subscriberBuffer = 64
	writeTimeout     = 5 * time.Second
)

// Feed is a service.Fanout that pushes every recorded event to the
// websocket clients connected to Handler.
type Feed struct {
	hub      *Hub[view.Event]
	units    view.Units
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewFeed(units view.Units, log *zap.Logger) *Feed {
	return &Feed{
		hub:      NewHub[view.Event](),
		units:    units,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		log:      log.Named("ws"),
	}
}

func (f *Feed) Broadcast(p service.Published) {
	f.hub.Broadcast(f.units.Event(p))
}

func (f *Feed) Subscribers() int {
	return f.hub.Len()
}

// Handler upgrades the request and streams events until the client goes
// away. ?side=bid or ?side=ask restricts the stream to one side.
func (f *Feed) Handler(w http.ResponseWriter, r *http.Request) {
	var side string
	if q := r.URL.Query().Get("side"); q != "" {
		s, err := view.ParseSide(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		side = s.String()
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Debug("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := f.hub.Subscribe(subscriberBuffer)
	defer f.hub.Unsubscribe(sub)

	// the client never sends; reading only surfaces the close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	f.log.Debug("subscriber connected", zap.String("remote", r.RemoteAddr), zap.String("side", side))
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			if side != "" && e.Side != side {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(e); err != nil {
				f.log.Debug("subscriber dropped", zap.Error(err))
				return
			}
		}
	}
}
