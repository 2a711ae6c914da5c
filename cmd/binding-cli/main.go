// Command binding-cli sends a single BINDING request to a STUN server
// and prints the reflexive transport address from the response.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/halcyon-systems/gostun"
	"github.com/halcyon-systems/gostun/agent"
	"github.com/halcyon-systems/gostun/attrs"
	"github.com/halcyon-systems/gostun/channel"
	"github.com/halcyon-systems/gostun/codec"
	"github.com/halcyon-systems/gostun/transport"
	"github.com/halcyon-systems/gostun/transport/retransmit"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type bindingResult struct {
	Server        string `json:"server"`
	MappedAddress string `json:"mapped_address"`
	MappedPort    int    `json:"mapped_port"`
	TransactionID string `json:"transaction_id"`
	RTT           string `json:"rtt"`
}

func main() {
	app := cli.NewApp()
	app.Name = "binding-cli"
	app.Usage = "send a STUN BINDING request and print the reflexive address"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "server, s", Usage: "STUN server HOST:PORT", Required: true},
		cli.DurationFlag{Name: "timeout, t", Usage: "per-call timeout", Value: 5 * time.Second},
		cli.BoolFlag{Name: "json", Usage: "print the result as JSON"},
		cli.BoolFlag{Name: "no-color", Usage: "disable ANSI colors"},
		cli.BoolFlag{Name: "verbose, v", Usage: "enable debug logging"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	out := colorable.NewColorableStdout()
	useColor := !c.Bool("no-color") && isatty.IsTerminal(os.Stdout.Fd())

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if c.Bool("verbose") {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	slog := stun.NewLogger(log)

	server := c.String("server")
	peer, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("resolve %q: %v", server, err), 1)
	}

	cdc := codec.New(
		attrs.XORMappedAddressDecoder{},
		attrs.ErrorCodeDecoder{},
		attrs.UnknownAttributesDecoder{},
		attrs.SoftwareDecoder{},
	)

	cfg := stun.DefaultConfig()
	udpT, err := transport.NewUDPTransport(":0", cdc, cfg.MaxMessageSize, slog)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("open udp socket: %v", err), 1)
	}
	defer udpT.Close()

	rt := retransmit.New(udpT, cfg, slog)
	ch := channel.New(rt, cfg, slog)
	client := agent.NewClient(ch, slog)
	defer client.Close()

	req := stun.NewMessage(stun.ClassRequest, stun.MethodBinding, stun.TransactionID{})
	req.Add(attrs.Software{Description: "gostun-binding-cli/0.1.0"})

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	start := time.Now()
	resp, err := client.Call(ctx, peer, req)
	elapsed := time.Since(start)
	if err != nil {
		return cli.NewExitError(colorizeErr(useColor, err), 1)
	}

	if resp.Class == stun.ClassErrorResponse {
		errAttr, ok, decErr := resp.Get(attrs.ErrorCodeDecoder{})
		if decErr == nil && ok {
			ec := errAttr.(attrs.ErrorCode)
			return cli.NewExitError(colorizeErr(useColor, fmt.Errorf("%d %s", ec.Code, ec.Reason)), 1)
		}
		return cli.NewExitError(colorizeErr(useColor, fmt.Errorf("error response with no ERROR-CODE")), 1)
	}

	mapped, ok, err := resp.Get(attrs.XORMappedAddressDecoder{})
	if err != nil || !ok {
		return cli.NewExitError(colorizeErr(useColor, fmt.Errorf("success response missing XOR-MAPPED-ADDRESS")), 1)
	}
	addr := mapped.(attrs.XORMappedAddress)

	result := bindingResult{
		Server:        server,
		MappedAddress: addr.IP.String(),
		MappedPort:    addr.Port,
		TransactionID: resp.TransactionID.String(),
		RTT:           elapsed.String(),
	}

	if c.Bool("json") {
		enc, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		fmt.Fprintln(out, string(enc))
		return nil
	}

	line := fmt.Sprintf("mapped address: %s:%d (rtt %s)", result.MappedAddress, result.MappedPort, result.RTT)
	if useColor {
		line = ansi.Color(line, "green")
	}
	fmt.Fprintln(out, line)
	return nil
}

func colorizeErr(useColor bool, err error) string {
	if !useColor {
		return err.Error()
	}
	return ansi.Color(err.Error(), "red")
}
