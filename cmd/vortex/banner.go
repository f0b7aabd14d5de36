package main

import (
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jackpal/gateway"
	"github.com/mdp/qrterminal/v3"

	"vortex/internal/config"
	"vortex/internal/logger"
)

// Half-block characters for the terminal QR code.
const (
	blackWhite = "▄"
	blackBlack = " "
	whiteBlack = "▀"
	whiteWhite = "█"
)

func printBanner(w io.Writer, cfg *config.Config, root string, showQR bool) {
	url := serverURL(cfg.Server.Host, cfg.Server.Port)

	fmt.Fprintf(w, "Vortex serving %s\n", root)
	fmt.Fprintf(w, "  URL:      %s\n", url)
	if cfg.WebDAV.Enabled {
		fmt.Fprintf(w, "  WebDAV:   %sdav/\n", url)
	}
	fmt.Fprintf(w, "  Workers:  %d (queue %d)\n", cfg.Server.MaxWorkers, cfg.Server.QueueSize)
	if cfg.Upload.ReadOnly {
		fmt.Fprintln(w, "  Uploads:  disabled")
	} else if cfg.Upload.MaxSize > 0 {
		fmt.Fprintf(w, "  Uploads:  up to %s\n", humanize.Bytes(uint64(cfg.Upload.MaxSize)))
	}
	if len(cfg.Security.Users) > 0 {
		fmt.Fprintf(w, "  Auth:     %d user(s)\n", len(cfg.Security.Users))
	}
	if cfg.Metrics.Enabled {
		fmt.Fprintf(w, "  Metrics:  %s/metrics\n", serverURL(cfg.Server.Host, cfg.Metrics.Port))
	}

	if !showQR {
		return
	}
	fmt.Fprintln(w, "\nScan to open on your phone:")
	qrterminal.GenerateWithConfig(url, qrterminal.Config{
		Level:          qrterminal.M,
		Writer:         w,
		HalfBlocks:     true,
		BlackChar:      blackBlack,
		WhiteBlackChar: whiteBlack,
		WhiteChar:      whiteWhite,
		BlackWhiteChar: blackWhite,
		QuietZone:      1,
	})
}

// serverURL is the address other machines on the LAN should use.
func serverURL(host string, port int) string {
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = lanIP()
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/"
}

// lanIP returns the local address on the same subnet as the default
// gateway, or the loopback address when there is none.
func lanIP() string {
	gw, err := gateway.DiscoverGateway()
	if err != nil {
		logger.Debug("No default gateway: %v", err)
		return "127.0.0.1"
	}
	ip, err := localIPFor(gw)
	if err != nil {
		logger.Debug("No local address for gateway %s: %v", gw, err)
		return "127.0.0.1"
	}
	return ip.String()
}

func localIPFor(gw net.IP) (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if ok && ipnet.Contains(gw) {
				return ipnet.IP, nil
			}
		}
	}
	return nil, fmt.Errorf("no interface on the gateway's subnet")
}
