package main

import (
	"encoding/hex"
	"errors"
	"net"
	"os"
	"strings"

	"github.com/malcolmseyd/worldcrypt-go/capture"
	"github.com/malcolmseyd/worldcrypt-go/header"
	"github.com/ogier/pflag"
)

// ErrNoIP is returned when a host has no IPv4 address
var ErrNoIP = errors.New("worldcrypt: no valid ip address found")

// Config stores values related to program configuration
type Config struct {
	layout     header.Layout
	sessionKey header.SessionKey
	port       uint16
	bodies     bool

	// exactly one of these is set
	captureFile string
	liveHost    string
}

func newConfig() Config {
	config := Config{}

	pflag.Usage = printUsage

	generation := pflag.StringP("generation", "g", "vanilla", "client generation, vanilla or tbc")
	port := pflag.UintP("port", "p", capture.DefaultPort, "world server port")
	live := pflag.StringP("live", "l", "", "sniff traffic to this world server instead of reading a file")
	reverse := pflag.BoolP("reverse-key", "r", false, "session key is given most significant byte first")
	bodies := pflag.BoolP("bodies", "b", false, "print packet bodies as hex")

	pflag.Parse()
	config.bodies = *bodies
	config.liveHost = *live

	var ok bool
	config.layout, ok = header.LayoutByName(strings.ToLower(*generation))
	if !ok {
		Eprintln("Unknown generation:", *generation)
		os.Exit(1)
	}

	if *port == 0 || *port > 0xFFFF {
		Eprintln("Port out of range:", *port)
		os.Exit(1)
	}
	config.port = uint16(*port)

	args := pflag.Args()

	if len(args) < 1 {
		Eprintln("Too few arguments")
		printUsage()
		os.Exit(1)
	}

	key, err := parseSessionKey(args[0], *reverse)
	if err != nil {
		Eprintln("Session key has improper formatting:", err)
		os.Exit(1)
	}
	config.sessionKey = key

	switch {
	case config.liveHost == "" && len(args) == 2:
		config.captureFile = args[1]
	case config.liveHost != "" && len(args) == 1:
	default:
		Eprintln("Give either a capture file or --live")
		printUsage()
		os.Exit(1)
	}

	if config.liveHost != "" && os.Getuid() != 0 {
		Eprintln("Must be root to sniff!")
		os.Exit(1)
	}

	return config
}

// parseSessionKey decodes a hex session key. Tools that print the key as a
// big number put the most significant byte first, the wire order is the reverse.
func parseSessionKey(s string, reverse bool) (header.SessionKey, error) {
	var key header.SessionKey
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return key, err
	}
	if len(raw) != header.SessionKeyLength {
		return key, errors.New("must be 40 bytes")
	}
	if reverse {
		for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
			raw[i], raw[j] = raw[j], raw[i]
		}
	}
	copy(key[:], raw)
	return key, nil
}

// hostToIP resolves a hostname, whether DNS or IP, to an IPv4 address
func hostToIP(host string) (net.IP, error) {
	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil, err
	}

	for _, addrStr := range addrs {
		if addr, err := net.ResolveIPAddr("ip4", addrStr); err == nil {
			return addr.IP, nil
		}
	}
	return nil, ErrNoIP
}

func printUsage() {
	Eprintln("Usage: " + os.Args[0] + " [OPTION]... SESSION_KEY [CAPTURE_FILE]")
	Eprintln("Flags:")
	pflag.PrintDefaults()
	Eprintln("Examples:")
	Eprintln("    " + os.Args[0] + " -g tbc 2a61...e4 world.pcap")
	Eprintln("    " + os.Args[0] + " --live 192.168.1.20 2a61...e4")
}
