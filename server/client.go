package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ndx-io/NDX/graph"
	grapherror "github.com/ndx-io/NDX/graph/error"
	"github.com/ndx-io/NDX/sym"
)

// Websocket timing follows the gorilla/websocket chat example:
// https://github.com/gorilla/websocket/tree/master/examples/chat
const (
	// writeWait is the time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer
	pongWait = 60 * time.Second

	// pingPeriod is how often to ping the peer; must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound frames; graph requests are tiny but the
	// limit leaves room for batched protocols later
	maxMessageSize = 1024 * 1024
)

// Client is one websocket connection. The hub owns both send channels;
// the client only reads them.
type Client struct {
	server    *Server
	conn      *websocket.Conn
	send      chan *graph.Graph
	sendMsg   chan interface{}
	id        string
	closeOnce sync.Once
}

func newClient(s *Server, conn *websocket.Conn) *Client {
	return &Client{
		server:  s,
		conn:    conn,
		send:    make(chan *graph.Graph, MaxClientMessageQueueSize),
		sendMsg: make(chan interface{}, MaxClientMessageQueueSize),
		id:      uuid.New().String(),
	}
}

// close shuts the connection. Channels are closed by the hub, never here.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readPump reads client frames until the connection drops, then hands the
// client back to the hub for cleanup.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.ctx.Done():
		}
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.server.routeClientMessage(c, raw)
	}
}

// handleReadError logs unexpected closures. Normal disconnects (tab
// closed, navigation away) are not worth a log line.
func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		gerr := grapherror.New(grapherror.CategoryWebSocket, err, "").
			WithSubcategory(grapherror.SubcategoryWSRead).
			WithContext("client_id", c.id)
		c.server.logger.Warnw("Websocket read failed",
			append([]interface{}{"symbol", sym.Feed}, gerr.ToLogFields()...)...)
	}
}

// writePump writes queued snapshots and messages and keeps the connection
// alive with pings. A closed channel means the hub dropped the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.server.ctx.Done():
			return
		case g, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(g); err != nil {
				c.handleWriteError(err)
				return
			}
		case msg, ok := <-c.sendMsg:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.handleWriteError(err)
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

func (c *Client) handleWriteError(err error) {
	gerr := grapherror.New(grapherror.CategoryWebSocket, err, "").
		WithSubcategory(grapherror.SubcategoryWSWrite).
		WithContext("client_id", c.id)
	c.server.logger.Debugw("Websocket write failed",
		append([]interface{}{"symbol", sym.Feed}, gerr.ToLogFields()...)...)
}

// routeClientMessage dispatches one inbound websocket frame. Responses go
// back through the hub so the client's channels keep a single writer.
func (s *Server) routeClientMessage(client *Client, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.sendErrorToClient(client,
			grapherror.New(grapherror.CategoryParse, err, "Could not parse message"))
		return
	}

	switch msg.Type {
	case MessageTypePing:
		s.sendToClient(client, pongMessage{Type: "pong"})
	case MessageTypeRefresh:
		s.Refresh()
	case MessageTypeConvert:
		resp, gerr := s.convert(ConvertRequest{
			Source: msg.Source,
			Target: msg.Target,
			Time:   msg.Time,
		})
		if gerr != nil {
			s.sendErrorToClient(client, gerr)
			return
		}
		s.sendToClient(client, conversionMessage{Type: "conversion", ConvertResponse: *resp})
	default:
		s.sendErrorToClient(client, grapherror.Newf(grapherror.CategoryParse,
			"Unknown message type", "message type %q is not recognized", msg.Type))
	}
}

func (s *Server) sendToClient(client *Client, msg interface{}) {
	select {
	case s.direct <- directSend{client: client, msg: msg}:
	case <-s.ctx.Done():
	}
}

func (s *Server) sendErrorToClient(client *Client, gerr *grapherror.GraphError) {
	s.logger.Warnw("Client request failed",
		append([]interface{}{"symbol", sym.Feed, "client_id", client.id}, gerr.ToLogFields()...)...)
	s.sendToClient(client, errorMessage{Type: "error", Error: gerr.ToGraphMeta()})
}
