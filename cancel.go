package pgcore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pgkit/pgcore/codes"
	psqlerr "github.com/pgkit/pgcore/errors"
	"github.com/pgkit/pgcore/pkg/types"
)

// Cancel fires a CancelRequest for the running statement over a dedicated
// side channel. The dialer must open a fresh connection to the same backend,
// the request carries the process id and secret key received during the
// startup handshake. Cancellation is advisory: the backend may have finished
// the statement before the request arrives.
//
// The side channel is short-lived and written in one piece, a plain blocking
// net.Conn serves as its stream.
func (c *Conn) Cancel(dial func() (io.ReadWriteCloser, error)) error {
	if c.backendPID == 0 {
		err := errors.New("no backend key data, connection was never established")
		return psqlerr.WithCode(err, codes.ObjectNotInPrerequisiteState)
	}

	stream, err := dial()
	if err != nil {
		return fmt.Errorf("dialing cancel channel: %w", err)
	}

	defer stream.Close() //nolint:errcheck

	packet := make([]byte, 16)
	binary.BigEndian.PutUint32(packet[0:4], 16)
	binary.BigEndian.PutUint32(packet[4:8], uint32(types.VersionCancel))
	binary.BigEndian.PutUint32(packet[8:12], c.backendPID)
	binary.BigEndian.PutUint32(packet[12:16], c.backendKey)

	if _, err := stream.Write(packet); err != nil {
		return fmt.Errorf("writing cancel request: %w", err)
	}

	// The backend replies with nothing and closes the channel.
	_, err = io.Copy(io.Discard, stream)
	return err
}
