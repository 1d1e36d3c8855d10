package libsio

import (
	"context"
)

type (
	// CloseChan is closed once the owner is closed.
	CloseChan chan struct{}

	// Connection is a frame-level duplex connection.
	Connection interface {
		// Write queues a frame. It returns ErrConnectionClosed once the connection is gone.
		Write(m Message) error
		// Open dials and starts the read/write loops. It returns once the connection
		// is established or the dial failed.
		Open(ctx context.Context) error
		Close()
		CloseErr() error
		CloseChan() CloseChan
	}

	ConnectionFactory func(ctx context.Context, recvChan chan<- Message) Connection
)
