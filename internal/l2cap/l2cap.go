// Package l2cap opens an LE L2CAP connection-oriented channel (CoC) to a
// Bluetooth peripheral, using a raw AF_BLUETOOTH socket the way BlueZ-based
// clients do — there is no portable net.Dial for this address family.
package l2cap

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Bluetooth-specific constants not exposed by golang.org/x/sys/unix, taken
// from <bluetooth/bluetooth.h> and <bluetooth/l2cap.h>.
const (
	afBluetooth  = 31
	btProtoL2CAP = 0

	solBluetooth = 274
	btSecurity   = 4

	// btSecurityHigh requires authentication and encryption with at least a
	// 128-bit key, per spec §4.2 step 7.
	btSecurityHigh = 3

	// leAddrPublic selects a public (not random/resolvable) LE address, the
	// common case for bonded hearing-aid peripherals.
	leAddrPublic = 1
)

const addrLen = 6

// sockaddrL2 mirrors the kernel's struct sockaddr_l2 from <bluetooth/l2cap.h>:
//
//	sa_family_t l2_family;
//	__le16      l2_psm;
//	bdaddr_t    l2_bdaddr;
//	__le16      l2_cid;
//	__u8        l2_bdaddr_type;
type sockaddrL2 struct {
	family     uint16
	psm        uint16
	bdaddr     [addrLen]byte
	cid        uint16
	bdaddrType uint8
	_          [3]byte // pad, matches the compiler's struct layout
}

// btSecurityOpt mirrors struct bt_security from <bluetooth/bluetooth.h>.
type btSecurityOpt struct {
	level   uint8
	keySize uint8
}

func parseAddress(addr string) ([addrLen]byte, error) {
	var out [addrLen]byte
	parts := strings.Split(addr, ":")
	if len(parts) != addrLen {
		return out, fmt.Errorf("l2cap: malformed bluetooth address %q", addr)
	}
	// The kernel's bdaddr_t stores octets in reverse of the printed form.
	for i := 0; i < addrLen; i++ {
		b, err := strconv.ParseUint(parts[addrLen-1-i], 16, 8)
		if err != nil {
			return out, fmt.Errorf("l2cap: malformed bluetooth address %q: %w", addr, err)
		}
		out[i] = byte(b)
	}
	return out, nil
}

// Conn is an open LE L2CAP CoC stream socket.
type Conn struct {
	mu     sync.Mutex
	fd     int
	closed bool
}

// Dial opens an LE credit-based-flow-controlled L2CAP channel to addr's PSM,
// configured for LE transport and BT_SECURITY_HIGH (authenticated encryption
// with a 128-bit key), per spec §4.2 step 7.
func Dial(ctx context.Context, addr string, psm uint16) (*Conn, error) {
	bd, err := parseAddress(addr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(afBluetooth, unix.SOCK_SEQPACKET, btProtoL2CAP)
	if err != nil {
		return nil, fmt.Errorf("l2cap: socket: %w", err)
	}
	c := &Conn{fd: fd}

	if err := setSecurity(fd, btSecurityHigh); err != nil {
		unix.Close(fd)
		return nil, err
	}

	sa := sockaddrL2{family: afBluetooth, psm: psm, bdaddr: bd, bdaddrType: leAddrPublic}
	if err := connectTimeout(ctx, fd, &sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("l2cap: connect %s psm=%d: %w", addr, psm, err)
	}

	return c, nil
}

func setSecurity(fd int, level uint8) error {
	opt := btSecurityOpt{level: level, keySize: 16}
	_, _, errno := unix.Syscall6(
		unix.SYS_SETSOCKOPT,
		uintptr(fd),
		uintptr(solBluetooth),
		uintptr(btSecurity),
		uintptr(unsafe.Pointer(&opt)),
		unsafe.Sizeof(opt),
		0,
	)
	if errno != 0 {
		return fmt.Errorf("l2cap: setsockopt BT_SECURITY: %w", errno)
	}
	return nil
}

func connectRaw(fd int, sa *sockaddrL2) error {
	_, _, errno := unix.Syscall(
		unix.SYS_CONNECT,
		uintptr(fd),
		uintptr(unsafe.Pointer(sa)),
		unsafe.Sizeof(*sa),
	)
	if errno != 0 {
		return errno
	}
	return nil
}

// connectTimeout runs connectRaw on a worker goroutine so a ctx deadline can
// abandon it; the underlying fd is closed by the caller on failure which
// unblocks the syscall.
func connectTimeout(ctx context.Context, fd int, sa *sockaddrL2) error {
	done := make(chan error, 1)
	go func() { done <- connectRaw(fd, sa) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Write performs a single contiguous socket write. The ASHA wire format
// requires atomic frame delivery — a partial write is reported as an error
// so the caller can treat it as a fatal transport error for this peer.
func (c *Conn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, fmt.Errorf("l2cap: write on closed connection")
	}
	n, err := unix.Write(c.fd, b)
	if err != nil {
		return n, fmt.Errorf("l2cap: write: %w", err)
	}
	if n != len(b) {
		return n, fmt.Errorf("l2cap: partial write: wrote %d of %d bytes", n, len(b))
	}
	return n, nil
}

// Close shuts down the socket. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return unix.Close(c.fd)
}

// WriteDeadline is the per-frame write timeout from spec §5: longer than a
// frame period is a fatal transport error for the owning peer.
const WriteDeadline = 25 * time.Millisecond
