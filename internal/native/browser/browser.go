// Package browser implements the native map API against a browser page. The
// page connects over a websocket; commands go out as JSON frames carrying a
// request id, replies come back with the same id, and native events arrive
// unsolicited on the same socket.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/oops"

	"github.com/joeblew999/plat-mapbridge/internal/assets"
	"github.com/joeblew999/plat-mapbridge/internal/ids"
	"github.com/joeblew999/plat-mapbridge/internal/logging"
	"github.com/joeblew999/plat-mapbridge/internal/model"
	"github.com/joeblew999/plat-mapbridge/internal/native"
)

// ErrDisconnected fails requests in flight when the page goes away.
var ErrDisconnected = errors.New("map page disconnected")

const (
	sendBuffer   = 256
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// request is a command frame sent to the page.
type request struct {
	ID     string `json:"id"`
	Op     string `json:"op"`
	Target string `json:"target,omitempty"`
	Args   any    `json:"args,omitempty"`
}

// message is a frame received from the page: a reply when ID is set,
// otherwise an event for Target.
type message struct {
	ID     string          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Target string          `json:"target,omitempty"`
	Event  *native.Event   `json:"event,omitempty"`
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(lib *Library) { lib.logger = l }
}

// WithAssetPrefix sets the URL path the page loads cached assets from.
func WithAssetPrefix(prefix string) Option {
	return func(lib *Library) { lib.assetPrefix = prefix }
}

// WithCheckOrigin sets the websocket origin check.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(lib *Library) { lib.upgrader.CheckOrigin = fn }
}

// Library is a native.Library driving one connected page. A new connection
// replaces the previous one.
type Library struct {
	assets      *assets.Cache
	logger      *slog.Logger
	assetPrefix string
	upgrader    websocket.Upgrader

	mu       sync.Mutex
	conn     *conn
	ready    chan struct{}
	pending  map[string]chan message
	handlers map[string]*handlers
}

var _ native.Library = (*Library)(nil)

// New creates a library that loads bundles through cache.
func New(cache *assets.Cache, opts ...Option) *Library {
	l := &Library{
		assets:      cache,
		logger:      logging.Discard(),
		assetPrefix: "/assets/",
		ready:       make(chan struct{}),
		pending:     make(map[string]chan message),
		handlers:    make(map[string]*handlers),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connected reports whether a page is attached.
func (l *Library) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// ServeHTTP upgrades the request to the page's websocket.
func (l *Library) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &conn{ws: ws, send: make(chan request, sendBuffer), done: make(chan struct{})}

	for {
		l.mu.Lock()
		old := l.conn
		if old == nil {
			l.conn = c
			close(l.ready)
			l.mu.Unlock()
			break
		}
		l.mu.Unlock()
		l.disconnect(old)
	}
	l.logger.Info("map page connected", "remote", r.RemoteAddr)

	go c.writePump(l.logger)
	l.readPump(c)
}

func (l *Library) readPump(c *conn) {
	defer l.disconnect(c)
	for {
		var msg message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.logger.Warn("map page read failed", "error", err)
			}
			return
		}
		if msg.ID != "" {
			l.reply(msg)
			continue
		}
		if msg.Event != nil {
			l.dispatch(msg.Target, *msg.Event)
		}
	}
}

func (l *Library) reply(msg message) {
	l.mu.Lock()
	ch, ok := l.pending[msg.ID]
	delete(l.pending, msg.ID)
	l.mu.Unlock()
	if !ok {
		l.logger.Debug("reply for unknown request", "id", msg.ID)
		return
	}
	ch <- msg
}

// disconnect fails pending requests and raises an error event on every map
// that has listeners.
func (l *Library) disconnect(c *conn) {
	c.close()

	l.mu.Lock()
	if l.conn != c {
		l.mu.Unlock()
		return
	}
	l.conn = nil
	l.ready = make(chan struct{})
	pending := l.pending
	l.pending = make(map[string]chan message)
	var targets []string
	for target := range l.handlers {
		targets = append(targets, target)
	}
	l.mu.Unlock()

	for _, ch := range pending {
		ch <- message{Error: ErrDisconnected.Error()}
	}
	for _, target := range targets {
		l.dispatch(target, native.Event{Type: model.EventError, Error: ErrDisconnected.Error(), Code: "disconnected"})
	}
	l.logger.Warn("map page disconnected", "pending", len(pending))
}

// waitConn returns the attached page, waiting for one to connect.
func (l *Library) waitConn(ctx context.Context) (*conn, error) {
	for {
		l.mu.Lock()
		c, ready := l.conn, l.ready
		l.mu.Unlock()
		if c != nil {
			return c, nil
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return nil, oops.In("browser").Wrapf(ctx.Err(), "waiting for map page")
		}
	}
}

// call sends a command and decodes its reply into out when out is not nil.
func (l *Library) call(ctx context.Context, op, target string, args, out any) error {
	c, err := l.waitConn(ctx)
	if err != nil {
		return err
	}

	req := request{ID: ids.New(), Op: op, Target: target, Args: args}
	ch := make(chan message, 1)
	l.mu.Lock()
	l.pending[req.ID] = ch
	l.mu.Unlock()
	forget := func() {
		l.mu.Lock()
		delete(l.pending, req.ID)
		l.mu.Unlock()
	}

	select {
	case c.send <- req:
	case <-c.done:
		forget()
		return oops.In("browser").With("op", op, "target", target).Wrap(ErrDisconnected)
	case <-ctx.Done():
		forget()
		return ctx.Err()
	}

	select {
	case msg := <-ch:
		if msg.Error != "" {
			if msg.Error == ErrDisconnected.Error() {
				return oops.In("browser").With("op", op, "target", target).Wrap(ErrDisconnected)
			}
			return oops.In("browser").With("op", op, "target", target).Errorf("%s", msg.Error)
		}
		if out != nil && len(msg.Result) > 0 {
			if err := json.Unmarshal(msg.Result, out); err != nil {
				return oops.In("browser").With("op", op).Wrapf(err, "decode %s reply", op)
			}
		}
		return nil
	case <-ctx.Done():
		forget()
		return ctx.Err()
	}
}

func (l *Library) on(target string, kind model.EventKind, h native.Handler) func() {
	l.mu.Lock()
	hs, ok := l.handlers[target]
	if !ok {
		hs = newHandlers()
		l.handlers[target] = hs
	}
	l.mu.Unlock()
	return hs.on(kind, h)
}

func (l *Library) dispatch(target string, ev native.Event) {
	l.mu.Lock()
	hs := l.handlers[target]
	l.mu.Unlock()
	if hs != nil {
		hs.emit(ev)
	}
}

func (l *Library) forgetTarget(target string) {
	l.mu.Lock()
	delete(l.handlers, target)
	l.mu.Unlock()
}

type loadArgs struct {
	Kind model.PluginKind `json:"kind,omitempty"`
	CSS  string           `json:"css"`
	JS   string           `json:"js"`
}

func (l *Library) bundle(ctx context.Context, names []string) (loadArgs, error) {
	if err := l.assets.Prefetch(ctx, names...); err != nil {
		return loadArgs{}, err
	}
	return loadArgs{CSS: l.assetPrefix + names[0], JS: l.assetPrefix + names[1]}, nil
}

// Load warms the asset cache with the library bundle and has the page
// evaluate it.
func (l *Library) Load(ctx context.Context) error {
	args, err := l.bundle(ctx, assets.LibraryAssets())
	if err != nil {
		return err
	}
	return l.call(ctx, "library.load", "", args, nil)
}

// LoadPlugin loads a plugin bundle into the page.
func (l *Library) LoadPlugin(ctx context.Context, kind model.PluginKind) error {
	args, err := l.bundle(ctx, assets.PluginAssets(kind))
	if err != nil {
		return err
	}
	args.Kind = kind
	return l.call(ctx, "plugin.load", "", args, nil)
}

// NewMap creates a map in the page container named by opts.Container.
func (l *Library) NewMap(ctx context.Context, opts model.MapOptions) (native.Map, error) {
	if err := l.call(ctx, "map.create", opts.Container, opts, nil); err != nil {
		return nil, err
	}
	return &Map{lib: l, id: opts.Container}, nil
}

// conn is one page connection. All writes go through writePump.
type conn struct {
	ws   *websocket.Conn
	send chan request
	once sync.Once
	done chan struct{}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *conn) writePump(logger *slog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case req := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(req); err != nil {
				logger.Warn("map page write failed", "op", req.Op, "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// handlers is a per-kind handler table for one event target.
type handlers struct {
	mu   sync.Mutex
	next int
	byID map[model.EventKind]map[int]native.Handler
}

func newHandlers() *handlers {
	return &handlers{byID: make(map[model.EventKind]map[int]native.Handler)}
}

func (h *handlers) on(kind model.EventKind, fn native.Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	if h.byID[kind] == nil {
		h.byID[kind] = make(map[int]native.Handler)
	}
	h.byID[kind][id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.byID[kind], id)
	}
}

func (h *handlers) emit(ev native.Event) {
	h.mu.Lock()
	fns := make([]native.Handler, 0, len(h.byID[ev.Type]))
	for _, fn := range h.byID[ev.Type] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
