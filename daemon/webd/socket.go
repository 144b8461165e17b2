package webd

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/event"
	"github.com/olahol/melody"
	"github.com/rotblauer/catmotion/delivery"
	"github.com/rotblauer/catmotion/events"
	"github.com/rotblauer/catmotion/movement"
	"github.com/rotblauer/catmotion/visit"
)

type websocketAction string

const (
	websocketActionState    websocketAction = "state"
	websocketActionVisit    websocketAction = "visit"
	websocketActionSample   websocketAction = "sample"
	websocketActionDelivery websocketAction = "delivery"
	websocketActionMovement websocketAction = "movement"
)

type broadcats struct {
	Action websocketAction `json:"action"`
	Data   any             `json:"data"`
}

func (s *WebDaemon) marshalBroadcast(action websocketAction, data any) ([]byte, bool) {
	b, err := json.Marshal(broadcats{Action: action, Data: data})
	if err != nil {
		s.logger.Error("Failed to marshal websocket event", "action", action, "error", err)
		return nil, false
	}
	return b, true
}

func (s *WebDaemon) broadcast(action websocketAction, data any) {
	b, ok := s.marshalBroadcast(action, data)
	if !ok {
		return
	}
	if err := s.melodyInstance.Broadcast(b); err != nil {
		s.logger.Warn("Failed to broadcast websocket event", "action", action, "error", err)
	}
}

// initMelody sets up the websocket handler.
// New connections get the current delivery status and movement info,
// then every state change, visit, processed sample and delivery change as it happens.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	s.melodyInstance.HandleConnect(func(session *melody.Session) {
		s.logger.Info("Websocket connected", "remote", session.Request.RemoteAddr)
		if b, ok := s.marshalBroadcast(websocketActionDelivery, s.delivery.Status()); ok {
			_ = session.Write(b)
		}
		info := s.tracker.CurrentMovementInfo(context.Background())
		if b, ok := s.marshalBroadcast(websocketActionMovement, info); ok {
			_ = session.Write(b)
		}
	})

	// Incoming client messages are logged and dropped.
	s.melodyInstance.HandleMessage(func(session *melody.Session, msg []byte) {
		s.logger.Debug("Websocket message", "remote", session.Request.RemoteAddr, "message", string(msg))
	})

	s.melodyInstance.HandleDisconnect(func(session *melody.Session) {
		s.logger.Info("Websocket disconnected", "remote", session.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(session *melody.Session, e error) {
		s.logger.Warn("Websocket error", "remote", session.Request.RemoteAddr, "error", e)
	})

	changes := make(chan movement.StateChange)
	visits := make(chan *visit.Visit)
	processed := make(chan events.ProcessedSample)
	statuses := make(chan delivery.Status)
	scope := event.SubscriptionScope{}
	changesSub := scope.Track(events.StateChangedFeed.Subscribe(changes))
	visitsSub := scope.Track(events.VisitFeed.Subscribe(visits))
	processedSub := scope.Track(events.SampleFeed.Subscribe(processed))
	statusesSub := scope.Track(s.delivery.SubscribeStatus(statuses))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer scope.Close()
		for {
			select {
			case ch := <-changes:
				s.broadcast(websocketActionState, ch)
			case v := <-visits:
				s.broadcast(websocketActionVisit, v)
			case p := <-processed:
				s.broadcast(websocketActionSample, p)
			case st := <-statuses:
				s.broadcast(websocketActionDelivery, st)
			case err := <-changesSub.Err():
				s.logger.Error("State change subscription failed", "error", err)
				return
			case err := <-visitsSub.Err():
				s.logger.Error("Visit subscription failed", "error", err)
				return
			case err := <-processedSub.Err():
				s.logger.Error("Sample subscription failed", "error", err)
				return
			case err := <-statusesSub.Err():
				s.logger.Error("Delivery status subscription failed", "error", err)
				return
			case <-s.quit:
				return
			}
		}
	}()
}
