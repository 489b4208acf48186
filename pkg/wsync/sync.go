// Package wsync runs the automerge sync protocol over a websocket connection.
package wsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/gorilla/websocket"
)

const defaultInterval = time.Second

// Peer is one side of a sync session. Lock guards the document behind State; OnReceive runs
// after a message from the other side changed the document, with Lock released.
type Peer struct {
	State     *automerge.SyncState
	Lock      sync.Locker
	OnReceive func()
	Interval  time.Duration
	Logger    *slog.Logger
}

func (p *Peer) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Peer) readAndReceiveMessage(conn *websocket.Conn) error {
	mt, msg, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}
	if mt != websocket.BinaryMessage {
		return nil
	}
	p.Lock.Lock()
	_, err = p.State.ReceiveMessage(msg)
	p.Lock.Unlock()
	if err != nil {
		return fmt.Errorf("failed to receive message: %w", err)
	}
	if p.OnReceive != nil {
		p.OnReceive()
	}
	return nil
}

func (p *Peer) generateAndWriteMessage(conn *websocket.Conn) (bool, error) {
	p.Lock.Lock()
	msg, valid := p.State.GenerateMessage()
	p.Lock.Unlock()
	if msg == nil || !valid {
		return false, nil
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, msg.Bytes()); err != nil {
		return false, fmt.Errorf("failed to write message: %w", err)
	}
	return true, nil
}

func (p *Peer) flush(conn *websocket.Conn) error {
	for {
		if ok, err := p.generateAndWriteMessage(conn); err != nil {
			return err
		} else if !ok {
			return nil
		}
	}
}

// Sync exchanges messages until the connection fails or ctx is done. Local changes are
// offered to the other side every Interval.
func Sync(ctx context.Context, conn *websocket.Conn, p *Peer) error {
	if p.Lock == nil {
		p.Lock = new(sync.Mutex)
	}
	interval := p.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	log := p.logger()
	log.Info("syncing", "remote", conn.RemoteAddr())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			if err := p.readAndReceiveMessage(conn); err != nil {
				errs <- err
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		if err := p.flush(conn); err != nil {
			errs <- err
			return
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if err := p.flush(conn); err != nil {
					errs <- err
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	_ = conn.Close()
	wg.Wait()
	close(errs)
	if err, ok := <-errs; ok {
		log.Info("sync ended", "err", err)
	}
	return nil
}
