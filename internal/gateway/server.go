// Package gateway exposes the order intake and settlement feed over
// WebSocket. It is the bridge between untrusted clients and the
// single-threaded sequencer: every accepted message becomes one sequenced
// inbox event.
package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Raunaque97/beat-exchange/internal/domain"
	"github.com/Raunaque97/beat-exchange/internal/event"
	"github.com/Raunaque97/beat-exchange/internal/infra"
	"github.com/Raunaque97/beat-exchange/pkg/quant"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
	replyWait      = 5 * time.Second
)

// OrderRequest is the client's order message. Amounts are decimal strings
// in display units; prices are integer ticks.
type OrderRequest struct {
	Type       string `json:"type"`
	Side       string `json:"side"`
	Base       string `json:"base"`
	Quote      string `json:"quote"`
	AmountLow  string `json:"amount_low"`
	AmountHigh string `json:"amount_high"`
	PriceLow   uint64 `json:"price_low"`
	PriceHigh  uint64 `json:"price_high"`
	Sender     string `json:"sender"`
	Receiver   string `json:"receiver,omitempty"`
}

// OrderAck is the gateway's reply to an order message.
type OrderAck struct {
	Type    string `json:"type"`
	OK      bool   `json:"ok"`
	OrderID uint64 `json:"order_id,omitempty"`
	Height  uint64 `json:"height,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SettlementNotice is pushed to every connected client after a round closes.
type SettlementNotice struct {
	Type      string `json:"type"`
	Pair      string `json:"pair"`
	Height    uint64 `json:"height"`
	Price     uint64 `json:"price"`
	BuyTotal  string `json:"buy_total"`
	SellTotal string `json:"sell_total"`
}

// Server accepts WebSocket clients, feeds their orders into the sequencer
// inbox and fans settlement notices back out.
type Server struct {
	inbox    chan<- event.Event
	seq      *uint64
	tokens   map[string]domain.TokenID
	decimals int32
	metrics  *infra.Metrics
	log      *slog.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan interface{}
}

// New builds a gateway over the given inbox. seq is the shared event
// sequence counter (the block ticker advances the same one).
func New(inbox chan<- event.Event, seq *uint64, tokens map[string]uint64, decimals int32, metrics *infra.Metrics, log *slog.Logger) *Server {
	ids := make(map[string]domain.TokenID, len(tokens))
	for sym, id := range tokens {
		ids[strings.ToUpper(sym)] = domain.TokenID(id)
	}
	return &Server{
		inbox:    inbox,
		seq:      seq,
		tokens:   ids,
		decimals: decimals,
		metrics:  metrics,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the HTTP handler for the /ws endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{conn: conn, send: make(chan interface{}, sendBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.IncrementConnections()
	}
	s.log.Info("client connected", slog.String("remote", conn.RemoteAddr().String()))

	go s.writeLoop(c)
	s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	defer s.dropClient(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req OrderRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("client read failed", slog.Any("error", err))
			}
			return
		}
		switch req.Type {
		case "place_order":
			c.send <- s.placeOrder(req)
		default:
			c.send <- OrderAck{Type: "ack", Error: fmt.Sprintf("unknown message type %q", req.Type)}
		}
	}
}

func (s *Server) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) dropClient(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.DecrementConnections()
	}
}

// placeOrder validates and converts a client request, submits it to the
// sequencer and waits for the placement result.
func (s *Server) placeOrder(req OrderRequest) OrderAck {
	order, pair, side, err := s.parseOrder(req)
	if err != nil {
		return OrderAck{Type: "ack", Error: err.Error()}
	}

	reply := make(chan event.PlacementResult, 1)
	ev := event.AcquireOrderSubmitted()
	ev.Seq = quant.NextSeq(s.seq)
	ev.Ts = time.Now().UnixMicro()
	ev.Pair = pair
	ev.Side = side
	ev.Order = order
	ev.Sender = domain.AccountID(req.Sender)
	ev.Reply = reply
	s.inbox <- ev

	select {
	case res := <-reply:
		// the sequencer is done with the event once it replied
		event.ReleaseOrderSubmitted(ev)
		if res.Err != nil {
			return OrderAck{Type: "ack", Error: res.Err.Error()}
		}
		return OrderAck{Type: "ack", OK: true, OrderID: res.OrderID, Height: res.Height}
	case <-time.After(replyWait):
		// no release on timeout: the sequencer may still hold the event
		return OrderAck{Type: "ack", Error: "sequencer timeout"}
	}
}

func (s *Server) parseOrder(req OrderRequest) (domain.Order, domain.TokenPair, domain.Side, error) {
	var side domain.Side
	switch strings.ToLower(req.Side) {
	case "buy":
		side = domain.Buy
	case "sell":
		side = domain.Sell
	default:
		return domain.Order{}, domain.TokenPair{}, 0, fmt.Errorf("unknown side %q", req.Side)
	}

	base, ok := s.tokens[strings.ToUpper(req.Base)]
	if !ok {
		return domain.Order{}, domain.TokenPair{}, 0, fmt.Errorf("unknown token %q", req.Base)
	}
	quote, ok := s.tokens[strings.ToUpper(req.Quote)]
	if !ok {
		return domain.Order{}, domain.TokenPair{}, 0, fmt.Errorf("unknown token %q", req.Quote)
	}
	if req.Sender == "" {
		return domain.Order{}, domain.TokenPair{}, 0, fmt.Errorf("missing sender")
	}

	amountLow, err := quant.ParseAmount(req.AmountLow, s.decimals)
	if err != nil {
		return domain.Order{}, domain.TokenPair{}, 0, fmt.Errorf("amount_low: %w", err)
	}
	amountHigh, err := quant.ParseAmount(req.AmountHigh, s.decimals)
	if err != nil {
		return domain.Order{}, domain.TokenPair{}, 0, fmt.Errorf("amount_high: %w", err)
	}

	order := domain.Order{
		AmountLow:  amountLow,
		AmountHigh: amountHigh,
		PriceLow:   req.PriceLow,
		PriceHigh:  req.PriceHigh,
		Receiver:   domain.AccountID(req.Receiver),
	}
	return order, domain.NewTokenPair(base, quote), side, nil
}

// BroadcastSettlement pushes a settlement notice to every connected client.
// Slow clients are skipped rather than blocking the caller.
func (s *Server) BroadcastSettlement(res domain.SettlementResult) {
	notice := SettlementNotice{
		Type:      "settlement",
		Pair:      res.Pair.String(),
		Height:    res.Height,
		Price:     res.Price,
		BuyTotal:  quant.FormatAmount(res.BuyTotal, s.decimals),
		SellTotal: quant.FormatAmount(res.SellTotal, s.decimals),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- notice:
		default:
		}
	}
}

// CloseAll disconnects every client (shutdown path).
func (s *Server) CloseAll() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(writeWait))
		c.conn.Close()
	}
}
