// Package capture optionally records the simulator's own traffic to a
// pcap file. Unlike a live interface capture, the simulator already has
// every application-layer byte it reads and writes, so this package
// synthesizes Ethernet/IPv4/TCP frames around those bytes rather than
// sniffing a NIC.
package capture

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var localMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
var peerMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}

// Recorder writes synthesized frames for every byte the simulator sends
// or receives to a single pcap file. One Recorder serves every
// connection the simulator accepts; its own mutex serializes writes, and
// each connection tracks its TCP sequence numbers in a Flow.
type Recorder struct {
	mu     sync.Mutex
	file   *os.File
	writer *pcapgo.Writer
}

// NewRecorder creates path and writes the pcap file header.
func NewRecorder(path string) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("capture: create %s: %w", path, err)
	}
	writer := pcapgo.NewWriter(file)
	if err := writer.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		file.Close()
		return nil, fmt.Errorf("capture: write pcap header: %w", err)
	}
	return &Recorder{file: file, writer: writer}, nil
}

// Close flushes and closes the pcap file.
func (r *Recorder) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Flow tracks the sequence numbers for one TCP connection so that
// repeated RecordClient/RecordServer calls produce a coherent stream.
type Flow struct {
	clientIP   net.IP
	serverIP   net.IP
	clientPort layers.TCPPort
	serverPort layers.TCPPort
	clientSeq  uint32
	serverSeq  uint32
}

// NewFlow builds a Flow from the two ends of an accepted connection.
func NewFlow(client, server *net.TCPAddr) *Flow {
	return &Flow{
		clientIP:   client.IP,
		serverIP:   server.IP,
		clientPort: layers.TCPPort(client.Port),
		serverPort: layers.TCPPort(server.Port),
		clientSeq:  1,
		serverSeq:  1,
	}
}

// RecordClient appends a frame carrying data from client to server.
func (r *Recorder) RecordClient(f *Flow, data []byte) error {
	return r.record(f.clientIP, f.serverIP, f.clientPort, f.serverPort, f.clientSeq, f.serverSeq, data, func() { f.clientSeq += uint32(len(data)) })
}

// RecordServer appends a frame carrying data from server to client.
func (r *Recorder) RecordServer(f *Flow, data []byte) error {
	return r.record(f.serverIP, f.clientIP, f.serverPort, f.clientPort, f.serverSeq, f.clientSeq, data, func() { f.serverSeq += uint32(len(data)) })
}

func (r *Recorder) record(srcIP, dstIP net.IP, srcPort, dstPort layers.TCPPort, seq, ack uint32, data []byte, advance func()) error {
	if r == nil || len(data) == 0 {
		return nil
	}

	eth := &layers.Ethernet{SrcMAC: localMAC, DstMAC: peerMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: srcIP.To4(), DstIP: dstIP.To4()}
	tcp := &layers.TCP{SrcPort: srcPort, DstPort: dstPort, ACK: true, PSH: true, Seq: seq, Ack: ack}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return fmt.Errorf("capture: checksum: %w", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(data)); err != nil {
		return fmt.Errorf("capture: serialize: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	advance()
	return r.writer.WritePacket(gopacket.CaptureInfo{CaptureLength: len(buf.Bytes()), Length: len(buf.Bytes())}, buf.Bytes())
}
