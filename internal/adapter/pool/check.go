package pool

import "net"

// Check probes conn's liveness with a zero-length write; per spec.md
// §4.3 any write error discards the connection rather than returning
// it to the idle queue.
func Check(conn net.Conn) bool {
	if conn == nil {
		return false
	}
	_, err := conn.Write(nil)
	return err == nil
}
