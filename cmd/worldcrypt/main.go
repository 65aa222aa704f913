package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
	"github.com/malcolmseyd/worldcrypt-go/capture"
)

func main() {
	cfg := newConfig()

	d := capture.NewDecoder(cfg.layout, cfg.sessionKey, cfg.port)
	d.SetHandler(func(s *capture.Session, p capture.Packet) {
		printPacket(os.Stdout, s, p, cfg.bodies)
	})

	if cfg.liveHost != "" {
		runLive(cfg, d)
	} else {
		runFile(cfg, d)
	}

	if !printSummary(os.Stderr, d.Sessions()) {
		os.Exit(1)
	}
}

func runFile(cfg Config, d *capture.Decoder) {
	f, err := os.Open(cfg.captureFile)
	if err != nil {
		Fatalln("Error opening capture:", err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		Fatalln("Error reading capture header:", err)
	}
	err = d.Run(gopacket.NewPacketSource(r, r.LinkType()))
	if err != nil {
		Eprintln("Error reading capture:", err)
	}
}

func runLive(cfg Config, d *capture.Decoder) {
	serverIP, err := hostToIP(cfg.liveHost)
	if err != nil {
		Fatalln("Error resolving server:", err)
	}

	l, err := capture.OpenLive(serverIP, cfg.port)
	if err != nil {
		Fatalln("Error starting capture:", err)
	}
	defer l.Close()
	log.Printf("Sniffing %s:%d on %s, interrupt to stop\n", serverIP, cfg.port, l.Interface)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	packets := l.PacketSource().Packets()
	for {
		select {
		case packet, ok := <-packets:
			if !ok {
				d.Flush()
				return
			}
			d.AddPacket(packet)
		case <-interrupt:
			d.Flush()
			return
		}
	}
}

func printPacket(w io.Writer, s *capture.Session, p capture.Packet, bodies bool) {
	marker := " "
	if !p.Encrypted {
		marker = "*"
	}
	fmt.Fprintf(w, "%s %s %s%s size=%d opcode=0x%03X\n",
		p.Seen.Format("15:04:05.000"), s.Client, p.Direction, marker, p.Size, p.Opcode)
	if bodies && len(p.Body) > 0 {
		fmt.Fprint(w, hex.Dump(p.Body))
	}
}

// printSummary reports how each session ended, false if any failed
func printSummary(w io.Writer, sessions []*capture.Session) bool {
	ok := true
	for _, s := range sessions {
		status := "ok"
		if s.Err() != nil {
			status = s.Err().Error()
			ok = false
		}
		fmt.Fprintf(w, "%s -> %s: %d packets, %s\n", s.Client, s.Server, len(s.Packets()), status)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No world sessions found")
		return false
	}
	return ok
}
