package webrtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"github.com/Tetra360/bolt-test/internal/logger"
)

// EventsLabel is the data channel label peers open to receive console events.
const EventsLabel = "events"

// ErrMaxClients is returned when the peer limit has been reached.
var ErrMaxClients = errors.New("maximum clients reached")

// Peer is a connected WebRTC client
type Peer struct {
	id       string
	peerConn *webrtc.PeerConnection
	events   chan []byte
	done     chan struct{}
	once     sync.Once

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Server answers offers and pushes events over each peer's data channel
type Server struct {
	peers      map[string]*Peer
	peersMu    sync.RWMutex
	config     webrtc.Configuration
	maxClients int
	api        *webrtc.API

	// Initial, when set, supplies the first message sent on a newly opened channel.
	Initial func() []byte
	// OnPeerCount is called whenever the number of peers changes.
	OnPeerCount func(n int)
}

// NewServer creates a new WebRTC server
func NewServer(stunServers []string, maxClients int) *Server {
	iceServers := make([]webrtc.ICEServer, 0, len(stunServers))
	for _, url := range stunServers {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{url}})
	}
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}
	if maxClients <= 0 {
		maxClients = 4
	}

	settingsEngine := webrtc.SettingEngine{}
	settingsEngine.SetDTLSRetransmissionInterval(2 * time.Second)
	settingsEngine.SetNetworkTypes([]webrtc.NetworkType{
		webrtc.NetworkTypeUDP4,
		webrtc.NetworkTypeUDP6,
	})

	// Events only; no media codecs are needed.
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingsEngine))

	return &Server{
		peers:      make(map[string]*Peer),
		config:     webrtc.Configuration{ICEServers: iceServers},
		maxClients: maxClients,
		api:        api,
	}
}

// HandleOffer answers an SDP offer. The answer includes gathered ICE candidates.
func (s *Server) HandleOffer(offerJSON []byte) ([]byte, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(offerJSON, &offer); err != nil {
		return nil, fmt.Errorf("failed to parse offer: %w", err)
	}
	if offer.SDP == "" {
		return nil, errors.New("offer has no sdp")
	}

	if n := s.ClientCount(); n >= s.maxClients {
		return nil, fmt.Errorf("%w (%d)", ErrMaxClients, s.maxClients)
	}

	peerConn, err := s.api.NewPeerConnection(s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	peer := &Peer{
		id:       uuid.NewString(),
		peerConn: peerConn,
		events:   make(chan []byte, 16),
		done:     make(chan struct{}),
	}

	peerConn.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != EventsLabel {
			logger.Debug("WebRTC", "Peer %s opened unexpected channel %q", peer.id, dc.Label())
			return
		}
		dc.OnOpen(func() {
			logger.Debug("WebRTC", "Peer %s events channel open", peer.id)
			go s.sendEvents(peer, dc)
		})
	})

	peerConn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debug("WebRTC", "Peer %s connection state: %s", peer.id, state.String())
		switch state {
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			s.RemoveClient(peer.id)
		}
	})

	if err := peerConn.SetRemoteDescription(offer); err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := peerConn.CreateAnswer(nil)
	if err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(peerConn)
	if err := peerConn.SetLocalDescription(answer); err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}
	<-gatherComplete

	localDesc := peerConn.LocalDescription()
	if localDesc == nil {
		peerConn.Close()
		return nil, errors.New("no local description available")
	}
	answerJSON, err := json.Marshal(localDesc)
	if err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to marshal answer: %w", err)
	}

	s.peersMu.Lock()
	s.peers[peer.id] = peer
	n := len(s.peers)
	s.peersMu.Unlock()
	s.reportCount(n)

	logger.Info("WebRTC", "Peer %s connected (peers: %d)", peer.id, n)
	return answerJSON, nil
}

func (s *Server) sendEvents(peer *Peer, dc *webrtc.DataChannel) {
	if s.Initial != nil {
		if data := s.Initial(); data != nil {
			if err := dc.SendText(string(data)); err != nil {
				logger.Debug("WebRTC", "Peer %s initial send failed: %v", peer.id, err)
				return
			}
		}
	}

	for {
		select {
		case <-peer.done:
			return
		case data := <-peer.events:
			if err := dc.SendText(string(data)); err != nil {
				logger.Warn("WebRTC", "Error sending event to peer %s: %v", peer.id, err)
				s.RemoveClient(peer.id)
				return
			}
			peer.sent.Add(1)
		}
	}
}

// Broadcast queues data for every peer. Peers with a full queue skip it.
func (s *Server) Broadcast(data []byte) {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()

	for _, peer := range s.peers {
		select {
		case peer.events <- data:
		default:
			peer.dropped.Add(1)
		}
	}
}

// RemoveClient closes and forgets a peer. Unknown ids are ignored.
func (s *Server) RemoveClient(id string) {
	s.peersMu.Lock()
	peer, ok := s.peers[id]
	if ok {
		delete(s.peers, id)
	}
	n := len(s.peers)
	s.peersMu.Unlock()

	if !ok {
		return
	}

	peer.once.Do(func() {
		close(peer.done)
		_ = peer.peerConn.Close()
	})
	s.reportCount(n)

	logger.Info("WebRTC", "Peer %s disconnected (sent: %d, dropped: %d)",
		id, peer.sent.Load(), peer.dropped.Load())
}

// ClientCount returns the number of connected peers
func (s *Server) ClientCount() int {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	return len(s.peers)
}

// Close disconnects every peer
func (s *Server) Close() error {
	s.peersMu.RLock()
	ids := make([]string, 0, len(s.peers))
	for id := range s.peers {
		ids = append(ids, id)
	}
	s.peersMu.RUnlock()

	for _, id := range ids {
		s.RemoveClient(id)
	}
	return nil
}

func (s *Server) reportCount(n int) {
	if s.OnPeerCount != nil {
		s.OnPeerCount(n)
	}
}
