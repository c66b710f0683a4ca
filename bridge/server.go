// Package bridge connects a host application (an editor panel, a CLI) to a
// session over a websocket speaking small {command: ...} JSON messages.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/richinsley/goshadersound/renderer"
	"github.com/richinsley/goshadersound/session"
)

// Path is where the websocket endpoint is mounted.
const Path = "/ws"

const writeTimeout = 5 * time.Second

// Server serves one session to any number of host connections.
type Server struct {
	sess     *session.Session
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	peers      map[*peer]struct{}
	httpServer *http.Server
}

type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) send(msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteJSON(msg)
}

// NewServer serves sess. Browser pages may connect only from localhost or
// from one of allowedOrigins; see originAllowed.
func NewServer(sess *session.Session, allowedOrigins ...string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		sess: sess,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if originAllowed(origin, allowedOrigins) {
					return true
				}
				log.Printf("Warning: rejecting WebSocket from origin: %s", origin)
				return false
			},
		},
		mux:    http.NewServeMux(),
		ctx:    ctx,
		cancel: cancel,
		peers:  make(map[*peer]struct{}),
	}
	s.mux.HandleFunc(Path, s.handleWebSocket)

	sess.Diagnostics().Subscribe(func(text string) {
		s.Broadcast(Message{Command: CommandDiagnostics, Error: text})
	})
	return s
}

// Handler exposes the HTTP handler, for embedding or httptest.
func (s *Server) Handler() http.Handler { return s.mux }

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{Handler: s.mux}
	srv := s.httpServer
	s.mu.Unlock()

	log.Printf("Bridge listening on ws://%s%s", l.Addr(), Path)
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting, cancels in-flight loads and closes every peer.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	srv := s.httpServer
	for p := range s.peers {
		p.conn.Close()
	}
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Broadcast sends msg to every connected host.
func (s *Server) Broadcast(msg Message) {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		if err := p.send(msg); err != nil {
			log.Printf("Warning: failed to send %s to host: %v", msg.Command, err)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	log.Printf("Host connected from %s", r.RemoteAddr)

	p := &peer{conn: conn}
	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.peers, p)
		s.mu.Unlock()
		conn.Close()
		log.Printf("Host %s disconnected", r.RemoteAddr)
	}()

	if err := p.send(Message{Command: CommandLoaded}); err != nil {
		log.Printf("Failed to send loaded: %v", err)
		return
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Read error: %v", err)
			}
			return
		}
		s.handle(p, msg)
	}
}

func (s *Server) handle(p *peer, msg Message) {
	tr := s.sess.Transport()

	var err error
	switch msg.Command {
	case CommandSetShader:
		// Render off the read loop so status and transport commands keep
		// flowing while the blocks are drawn.
		go s.load(p, msg.Shader)
		return
	case CommandPlay:
		at := tr.State().Start
		if msg.Time != nil {
			at = *msg.Time
		}
		err = tr.Play(at)
	case CommandStop:
		tr.Stop()
	case CommandSeek:
		if msg.Time == nil {
			err = fmt.Errorf("seek requires time")
			break
		}
		err = tr.Seek(*msg.Time)
	case CommandSetLoop:
		if msg.Loop == nil {
			err = fmt.Errorf("setLoop requires loop")
			break
		}
		tr.SetLoop(*msg.Loop)
	case CommandSetGain:
		if msg.Gain == nil {
			err = fmt.Errorf("setGain requires gain")
			break
		}
		tr.SetGain(*msg.Gain)
	case CommandSetWindow:
		if msg.Start == nil || msg.End == nil {
			err = fmt.Errorf("setWindow requires start and end")
			break
		}
		tr.SetWindow(*msg.Start, *msg.End)
	case CommandStatus:
	default:
		err = fmt.Errorf("unknown command %q", msg.Command)
	}

	if err != nil {
		p.send(Message{Command: CommandError, Error: err.Error()})
		return
	}
	p.send(s.status())
}

func (s *Server) load(p *peer, src string) {
	err := s.sess.Load(s.ctx, src)
	if err != nil {
		text := err.Error()
		var ce *renderer.CompileError
		if errors.As(err, &ce) {
			text = ce.Log
		}
		log.Printf("Shader load failed: %v", err)
		p.send(Message{Command: CommandError, Error: text})
		return
	}
	p.send(Message{Command: CommandRendered, Duration: s.sess.Transport().State().Duration})
}

func (s *Server) status() Message {
	st := s.sess.Transport().State()
	return Message{Command: CommandStatus, Status: &Status{
		Session:  s.sess.ID,
		Ready:    st.Ready,
		Loading:  st.Loading,
		Playing:  st.Playing,
		Seeking:  st.Seeking,
		Loop:     st.Loop,
		Position: st.Position,
		Start:    st.Start,
		End:      st.End,
		Gain:     st.Gain,
		Duration: st.Duration,
	}}
}
