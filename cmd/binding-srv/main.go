// Command binding-srv runs a STUN server that answers every BINDING
// request with the client's reflexive transport address.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/halcyon-systems/gostun"
	"github.com/halcyon-systems/gostun/agent"
	"github.com/halcyon-systems/gostun/attrs"
	"github.com/halcyon-systems/gostun/channel"
	"github.com/halcyon-systems/gostun/codec"
	"github.com/halcyon-systems/gostun/transport"
)

func main() {
	app := cli.NewApp()
	app.Name = "binding-srv"
	app.Usage = "answer STUN BINDING requests with the caller's reflexive address"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "port, p", Usage: "UDP port to listen on", Value: 3478},
		cli.StringFlag{Name: "software", Usage: "SOFTWARE attribute to echo back", Value: "gostun-binding-srv/0.1.0"},
		cli.BoolFlag{Name: "verbose, v", Usage: "enable debug logging"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if c.Bool("verbose") {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	slog := stun.NewLogger(log)

	cdc := codec.New(
		attrs.XORMappedAddressDecoder{},
		attrs.ErrorCodeDecoder{},
		attrs.UnknownAttributesDecoder{},
		attrs.SoftwareDecoder{},
	)

	cfg := stun.DefaultConfig()
	laddr := fmt.Sprintf(":%d", c.Int("port"))
	udpT, err := transport.NewUDPTransport(laddr, cdc, cfg.MaxMessageSize, slog)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("listen on %s: %v", laddr, err), 1)
	}
	defer udpT.Close()

	ch := channel.New(udpT, cfg, slog)
	handler := &bindingHandler{software: c.String("software")}
	srv := agent.NewServer(ch, handler, slog)

	log.Infof("binding-srv listening on %s", udpT.LocalAddr())

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	if err := srv.Serve(stop); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}

// bindingHandler answers BINDING requests with the peer's transport
// address as seen by the server plus SOFTWARE, answers requests of any
// other method with 404 (Unknown Method), ignores indications, and
// answers the broken requests that reach HandleBroken (those the
// server's automatic 420 does not cover) with 400 (Bad Request).
type bindingHandler struct {
	software string
}

func (h *bindingHandler) HandleRequest(peer net.Addr, req *stun.Message) (*stun.Message, error) {
	if req.Method != stun.MethodBinding {
		resp := stun.NewMessage(stun.ClassErrorResponse, req.Method, req.TransactionID)
		resp.Add(attrs.ErrorCode{Code: 404, Reason: "Unknown Method"})
		return resp, nil
	}

	udp, ok := peer.(*net.UDPAddr)
	if !ok {
		resolved, err := net.ResolveUDPAddr("udp", peer.String())
		if err != nil {
			return nil, err
		}
		udp = resolved
	}

	resp := stun.NewMessage(stun.ClassSuccessResponse, stun.MethodBinding, req.TransactionID)
	resp.Add(attrs.XORMappedAddress{IP: udp.IP, Port: udp.Port})
	resp.Add(attrs.Software{Description: h.software})
	return resp, nil
}

func (h *bindingHandler) HandleIndication(peer net.Addr, ind *stun.Message) {}

func (h *bindingHandler) HandleBroken(peer net.Addr, broken *stun.BrokenMessage) (*stun.Message, error) {
	resp := stun.NewMessage(stun.ClassErrorResponse, broken.Method, broken.TransactionID)
	resp.Add(attrs.ErrorCode{Code: 400, Reason: "Bad Request"})
	return resp, nil
}
