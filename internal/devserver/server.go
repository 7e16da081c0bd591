// Package devserver is a small authority server implementing the wire
// contract the session controller speaks, so clients can be exercised
// end to end without the production backend.
package devserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/vibeparty/vibeparty/internal/session"
	"github.com/vibeparty/vibeparty/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	roomID string
	userID string
}

func (c *client) send(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	frame, err := json.Marshal(transport.Envelope{Event: event, Data: data})
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Server dispatches client events onto rooms and broadcasts state.
type Server struct {
	rooms *RoomManager

	mu      sync.Mutex
	members map[string]map[*client]struct{} // roomID -> clients
	timers  map[string]chan struct{}        // roomID -> ticker stop
}

func New() *Server {
	return &Server{
		rooms:   NewRoomManager(),
		members: make(map[string]map[*client]struct{}),
		timers:  make(map[string]chan struct{}),
	}
}

// Mount attaches the websocket endpoint and a health route to the
// given gin engine.
func (s *Server) Mount(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})
	r.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("ws upgrade failed")
			return
		}
		cl := &client{conn: conn}
		log.Info().Str("remote", conn.RemoteAddr().String()).Msg("client connected")
		go s.readLoop(cl)
	})
}

// RequestLogger is gin middleware logging non-websocket requests, in
// the same shape the rest of the server logs events.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/ws") {
			return
		}
		log.Info().Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	}
}

func (s *Server) readLoop(cl *client) {
	defer func() {
		s.dropClient(cl)
		_ = cl.conn.Close()
		log.Info().Msg("client disconnected")
	}()
	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		var env transport.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		s.handle(cl, env.Event, env.Data)
	}
}

func (s *Server) handle(cl *client, event string, data []byte) {
	switch event {
	case session.EventJoinRoom:
		var p session.JoinRoomPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		room := s.rooms.Ensure(p.RoomID)
		room.Join(p.User)
		s.addMember(p.RoomID, cl)
		cl.roomID = p.RoomID
		cl.userID = p.User.ID
		log.Info().Str("room", p.RoomID).Str("user", p.User.ID).Msg("join-room")
		s.broadcastState(p.RoomID)

	case session.EventStartGame:
		var roomID string
		if err := json.Unmarshal(data, &roomID); err != nil {
			return
		}
		room, err := s.rooms.Get(roomID)
		if err != nil {
			return
		}
		room.Start()
		log.Info().Str("room", roomID).Msg("start-game")
		s.broadcast(roomID, session.EventGameStarted, nil)
		s.broadcastState(roomID)
		s.startRoomTimer(roomID)

	case session.EventSubmitRound:
		var p session.SubmitRoundPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		room, err := s.rooms.Get(p.RoomID)
		if err != nil {
			return
		}
		all := room.RecordResponse(p.UserID, p.Response)
		log.Info().Str("room", p.RoomID).Str("user", p.UserID).Bool("all", all).Msg("submit-round")
		s.broadcastState(p.RoomID)

	case session.EventRoundCompleted:
		var p session.RoundCompletedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		room, err := s.rooms.Get(p.RoomID)
		if err != nil {
			return
		}
		room.Advance()
		log.Info().Str("room", p.RoomID).Str("round", room.Round().Name()).Msg("round completed")
		s.broadcast(p.RoomID, session.EventRoundCompleted, nil)
		s.broadcastState(p.RoomID)

	case session.EventSendMessage:
		var p session.ChatPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		room, err := s.rooms.Get(p.RoomID)
		if err != nil {
			return
		}
		msg := room.AddMessage(p.User, p.Message)
		s.broadcast(p.RoomID, session.EventNewMessage, msg)

	case session.EventUpdateTeamText:
		var p session.TeamTextPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		room, err := s.rooms.Get(p.RoomID)
		if err != nil {
			return
		}
		room.SetTeamText(p.Text)
		s.broadcast(p.RoomID, session.EventTeamTextUpdated, p.Text)

	case session.EventSubmitCaption:
		var p session.CaptionPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		room, err := s.rooms.Get(p.RoomID)
		if err != nil {
			return
		}
		room.AddCaption(p.UserID, p.Caption)
		s.broadcastState(p.RoomID)

	case session.EventReactMeme:
		var p session.ReactionPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		room, err := s.rooms.Get(p.RoomID)
		if err != nil {
			return
		}
		room.React(p.UserID, p.CaptionAuthorID, p.Reaction)
		s.broadcastState(p.RoomID)

	default:
		log.Debug().Str("event", event).Msg("unhandled event")
	}
}

func (s *Server) addMember(roomID string, cl *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[roomID] == nil {
		s.members[roomID] = make(map[*client]struct{})
	}
	s.members[roomID][cl] = struct{}{}
}

func (s *Server) dropClient(cl *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cl.roomID != "" {
		delete(s.members[cl.roomID], cl)
	}
}

func (s *Server) broadcast(roomID, event string, payload any) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.members[roomID]))
	for cl := range s.members[roomID] {
		clients = append(clients, cl)
	}
	s.mu.Unlock()
	for _, cl := range clients {
		cl.send(event, payload)
	}
}

func (s *Server) broadcastState(roomID string) {
	room, err := s.rooms.Get(roomID)
	if err != nil {
		return
	}
	s.broadcast(roomID, session.EventRoomUpdate, room.Snapshot())
}

// startRoomTimer runs the authoritative countdown for the room and
// pushes timer-update every second. A server-timed round reaching zero
// advances the room, mirroring a round completion.
func (s *Server) startRoomTimer(roomID string) {
	s.mu.Lock()
	if _, running := s.timers[roomID]; running {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.timers[roomID] = stop
	s.mu.Unlock()

	room, err := s.rooms.Get(roomID)
	if err != nil {
		return
	}
	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				secs, expired, round := room.Tick()
				if round.Terminal() {
					s.mu.Lock()
					delete(s.timers, roomID)
					s.mu.Unlock()
					return
				}
				s.broadcast(roomID, session.EventTimerUpdate, secs)
				if expired {
					room.Advance()
					s.broadcast(roomID, session.EventRoundCompleted, nil)
					s.broadcastState(roomID)
				}
			}
		}
	}()
}
