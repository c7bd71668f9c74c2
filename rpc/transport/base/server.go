package base

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dgrid/dgrid/rpc/common"
	"github.com/dgrid/dgrid/rpc/transport"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.MemberConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g. "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.SocketConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverConn is one accepted connection. Responses and events share the
// write mutex.
type serverConn struct {
	conn    net.Conn
	writeMu sync.Mutex
}

func (c *serverConn) write(h frameHeader, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(c.conn, h, data)
}

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector         IServerConnector
	handler           transport.ServerHandleFunc
	config            common.MemberConfig
	listener          net.Listener
	bufferPool        *sync.Pool
	maxWorkersPerConn int

	conns   *xsync.MapOf[*serverConn, struct{}]
	closing chan struct{}
	wg      sync.WaitGroup // accept loop and connection handlers
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with per-connection worker pool
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		conns:     xsync.NewMapOf[*serverConn, struct{}](),
		closing:   make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.MemberConfig) (net.Addr, error) {
	t.config = config

	// minimum one worker per connection
	t.maxWorkersPerConn = max(config.WorkersPerConn, 1)
	bufferSize := max(config.BufferSize, 4*1024)
	t.bufferPool = &sync.Pool{
		New: func() interface{} {
			return make([]byte, bufferSize)
		},
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return nil, err
	}
	t.listener = listener

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), listener.Addr(), t.maxWorkersPerConn)

	t.wg.Add(1)
	go t.acceptLoop()
	return listener.Addr(), nil
}

func (t *serverTransport) Broadcast(payload []byte) {
	h := frameHeader{correlationID: 0, partitionID: -1, flags: FlagUnfragmented | FlagEvent}
	t.conns.Range(func(c *serverConn, _ struct{}) bool {
		if err := c.write(h, payload); err != nil {
			Logger.Warningf("Failed to push event to %s: %v", c.conn.RemoteAddr(), err)
		}
		return true
	})
}

func (t *serverTransport) Close() error {
	select {
	case <-t.closing:
		return nil
	default:
		close(t.closing)
	}

	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}
	t.conns.Range(func(c *serverConn, _ struct{}) bool {
		_ = c.conn.Close()
		return true
	})
	t.wg.Wait()
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *serverTransport) acceptLoop() {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.closing:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, t.config.Socket); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}

		// Handle the connection in a goroutine
		t.wg.Add(1)
		go t.handleConnection(conn)
	}
}

// handleConnection handles incoming requests for one connection
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer t.wg.Done()

	sc := &serverConn{conn: conn}
	t.conns.Store(sc, struct{}{})
	defer func() {
		t.conns.Delete(sc)
		_ = conn.Close()
	}()

	// Create a semaphore to limit concurrent workers for this connection
	// The buffered channel acts as a counting semaphore
	workerSemaphore := make(chan struct{}, t.maxWorkersPerConn)

	// Create a wait group to wait for all workers to finish
	var workers sync.WaitGroup

	// Handler function that processes requests in worker goroutines
	handleResponse := func(h frameHeader, data []byte) {
		// When done, release the semaphore and mark worker as done
		defer func() {
			<-workerSemaphore
			workers.Done()
		}()

		resp := t.handler(h.partitionID, data)

		// Write the response with the same correlation id
		if err := sc.write(frameHeader{correlationID: h.correlationID, partitionID: h.partitionID, flags: FlagUnfragmented}, resp); err != nil {
			Logger.Debugf("Failed to write response %d: %v", h.correlationID, err)
		}
	}

	for {
		// Get a buffer from the pool
		buf := t.bufferPool.Get().([]byte)

		h, data, err := readFrame(conn, buf)
		if err != nil {
			t.bufferPool.Put(buf)
			// Case EOF: Connection closed by client
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				Logger.Debugf("Connection from %s closed", conn.RemoteAddr())
			} else {
				Logger.Warningf("Error reading from %s: %v", conn.RemoteAddr(), err)
			}
			break
		}

		// Acquire a slot in the semaphore (blocks if maxWorkersPerConn is reached)
		workerSemaphore <- struct{}{}
		workers.Add(1)

		go func() {
			defer t.bufferPool.Put(buf)
			handleResponse(h, data)
		}()
	}

	// Wait for all workers to finish before closing the connection
	workers.Wait()
}
