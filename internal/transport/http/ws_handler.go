package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"trivia-quiz/internal/app"
	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/render"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WSHandler struct {
	service  *app.QuizService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Difficulty string `json:"difficulty"`
}

type selectPayload struct {
	PresentationID uint64 `json:"presentationId"`
	Answer         string `json:"answer"`
}

type submitPayload struct {
	PresentationID uint64 `json:"presentationId"`
}

type historyPayload struct {
	Records []domain.HistoryRecord `json:"records"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// ServeWS upgrades HTTP requests to websockets and runs one quiz session per player.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")
	if player == "" {
		http.Error(w, "missing player", http.StatusBadRequest)
		return
	}
	log := h.log.With(zap.String("player", player))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancelCtx := context.WithCancel(r.Context())
	defer cancelCtx()

	events, cancel, err := h.service.Subscribe(ctx, player)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}
	defer cancel()
	defer h.service.Close(player)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})
	var starts sync.WaitGroup

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				push(outboundMessage[any]{Type: domain.EventName(ev), Payload: ev})
			case <-closeSignals:
				return
			}
		}
	}()

	records, err := h.service.History(ctx, player)
	if err != nil {
		log.Debug("history unavailable", zap.Error(err))
	}
	if records == nil {
		records = []domain.HistoryRecord{}
	}
	push(outboundMessage[any]{Type: "history", Payload: historyPayload{Records: records}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(errorMessage("invalid start payload"))
				continue
			}
			difficulty, err := domain.ParseDifficulty(payload.Difficulty)
			if err != nil {
				push(errorMessage(err.Error()))
				continue
			}
			// The fetch may wait on the provider throttle; keep reading meanwhile.
			starts.Add(1)
			go func() {
				defer starts.Done()
				_, err := h.service.Start(ctx, player, difficulty)
				if err != nil && !errors.Is(err, domain.ErrSuperseded) {
					log.Debug("start failed", zap.Error(err))
				}
			}()
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(errorMessage("invalid select payload"))
				continue
			}
			h.dispatch(player, render.SelectionChanged{PresentationID: payload.PresentationID, Answer: payload.Answer}, push)
		case "submit":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(errorMessage("invalid submit payload"))
				continue
			}
			h.dispatch(player, render.Submitted{PresentationID: payload.PresentationID}, push)
		default:
			push(errorMessage("unsupported message type"))
		}
	}

	close(closeSignals)
	cancelCtx()
	starts.Wait()
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(player string, msg render.Message, push func(outboundMessage[any])) {
	if err := h.service.Dispatch(player, msg); err != nil {
		push(errorMessage(err.Error()))
	}
}
