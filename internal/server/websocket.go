package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"golang.org/x/sync/errgroup"
)

// maxInFlightPerSocket bounds concurrent calls on one WebSocket; further frames wait for a slot.
const maxInFlightPerSocket = 32

// handleWebSocket upgrades the connection and serves one envelope per text frame. Calls on the same
// socket run concurrently and their replies are written in completion order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	s.serveWebSocket(r.Context(), conn)
}

func (s *Server) serveWebSocket(ctx context.Context, conn net.Conn) {
	logger := s.logger.WithField("remote", conn.RemoteAddr().String())
	logger.Info("websocket connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlightPerSocket)

	// Every frame written to conn, replies and control answers alike, goes out under writeMu.
	var writeMu sync.Mutex
	control := wsutil.ControlFrameHandler(conn, ws.StateServerSide)
	lockedControl := func(h ws.Header, r io.Reader) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return control(h, r)
	}
	rd := &wsutil.Reader{
		Source:         conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: lockedControl,
	}

	for {
		msg, err := readMessage(rd, lockedControl)
		if err != nil {
			logger.WithError(err).Debug("websocket read ended")
			break
		}
		g.Go(func() error {
			resp := s.dispatcher.HandleMessage(gctx, msg)
			if resp == nil {
				return nil
			}
			payload, err := json.Marshal(resp)
			if err != nil {
				return err
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := wsutil.WriteServerMessage(conn, ws.OpText, payload); err != nil {
				// unblocks the read loop
				_ = conn.Close()
				return err
			}
			return nil
		})
	}

	cancel()
	if err := g.Wait(); err != nil {
		logger.WithError(err).Debug("websocket writer stopped")
	}
	_ = conn.Close()
	logger.Info("websocket disconnected")
}

// readMessage returns the next text or binary message. Control frames are answered through control
// and never surface; a close frame ends the read with wsutil.ClosedError.
func readMessage(rd *wsutil.Reader, control wsutil.FrameHandlerFunc) ([]byte, error) {
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := control(hdr, rd); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := rd.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		return io.ReadAll(rd)
	}
}
