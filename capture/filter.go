package capture

import (
	"encoding/binary"
	"net"

	"golang.org/x/net/bpf"
)

const (
	etherTypeOffset = 12
	ipv4Start       = 14
	protocolOffset  = ipv4Start + 9
	srcIPOffset     = ipv4Start + 12
	dstIPOffset     = ipv4Start + 16

	etherTypeIPv4 = 0x0800
	protocolTCP   = 6

	// enough for any TCP segment we'll see
	snapLength = 1 << 18
)

// filterProgram builds a BPF program for ethernet frames that keeps the TCP
// segments between serverIP and any client on port
func filterProgram(serverIP net.IP, port uint16) []bpf.Instruction {
	ipInt := binary.BigEndian.Uint32(serverIP.To4())

	// Skip values are the number of instructions to skip if true or false.
	// Every mismatch jumps to the final drop.
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: etherTypeOffset, Size: 2}, // ipv4
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypeIPv4, SkipFalse: 12},

		bpf.LoadAbsolute{Off: protocolOffset, Size: 1}, // tcp
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: protocolTCP, SkipFalse: 10},

		bpf.LoadAbsolute{Off: srcIPOffset, Size: 4}, // src or dst ip is server
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: ipInt, SkipTrue: 2},
		bpf.LoadAbsolute{Off: dstIPOffset, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: ipInt, SkipFalse: 6},

		// X is the ipv4 header length
		bpf.LoadMemShift{Off: ipv4Start},
		bpf.LoadIndirect{Off: ipv4Start, Size: 2}, // src or dst port is server
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(port), SkipTrue: 2},
		bpf.LoadIndirect{Off: ipv4Start + 2, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(port), SkipFalse: 1},

		bpf.RetConstant{Val: snapLength}, // keep packet
		bpf.RetConstant{Val: 0},          // drop packet
	}
}
