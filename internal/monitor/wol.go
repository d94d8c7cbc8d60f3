package monitor

import (
	"bytes"
	"fmt"
	"net"
)

// wolPort is the conventional Wake-on-LAN discard port.
const wolPort = 9

// magicPacketRepeats is how many times the MAC is repeated in the payload.
const magicPacketRepeats = 16

// wake sends a Wake-on-LAN magic packet for the given hardware address via
// UDP broadcast. Used for power-on when the device's agent is unreachable,
// which is the normal case for a machine that is switched off.
func wake(mac string) error {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return fmt.Errorf("parsing MAC address %q: %w", mac, err)
	}

	var payload bytes.Buffer
	payload.Write(bytes.Repeat([]byte{0xFF}, 6))
	for range magicPacketRepeats {
		payload.Write(hw)
	}

	conn, err := net.Dial("udp", fmt.Sprintf("255.255.255.255:%d", wolPort))
	if err != nil {
		return fmt.Errorf("opening broadcast socket: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(payload.Bytes()); err != nil {
		return fmt.Errorf("sending magic packet: %w", err)
	}
	return nil
}
