package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"feed-observer/src/config"
	pb "feed-observer/src/grpc_control"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const usage = `usage: ctl [-config path] [-addr host:port] <command> [args]

commands:
  status                 connection status and stream health
  login | logout         session control
  accounts | positions   broker account data
  market <epic>          market snapshot of an epic
  [-latest] navigation [node]
  prices                 classified prices of every stream
`

// -----------------------------------------------------------------------------

func main() {
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	addr := flag.String("addr", "", "gRPC address, defaults to grpc_host:grpc_port of the config")
	latest := flag.Bool("latest", false, "bypass the navigation cache")
	timeout := flag.Duration("timeout", 30*time.Second, "call timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	target := *addr
	if target == "" {
		conf, err := config.NewConfig(*configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		target = fmt.Sprintf("%s:%d", conf.GrpcHost, conf.GrpcPort)
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fmt.Printf("Error connecting to %s: %v\n", target, err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := run(ctx, pb.NewConnectionControlClient(conn), flag.Args(), *latest)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(result)
	if err != nil {
		fmt.Printf("Error encoding result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

// -----------------------------------------------------------------------------

func run(ctx context.Context, client *pb.ConnectionControlClient, args []string, latest bool) (proto.Message, error) {
	switch args[0] {
	case "status":
		return client.GetStatus(ctx)
	case "login":
		return client.Login(ctx)
	case "logout":
		return client.Logout(ctx)
	case "accounts":
		return client.ListAccounts(ctx)
	case "positions":
		return client.ListPositions(ctx)
	case "market":
		if len(args) < 2 {
			return nil, fmt.Errorf("market needs an epic")
		}
		return client.GetMarkets(ctx, args[1])
	case "navigation":
		node := ""
		if len(args) > 1 {
			node = args[1]
		}
		return client.ListMarkets(ctx, node, latest)
	case "prices":
		return client.ListPrices(ctx)
	default:
		return nil, fmt.Errorf("unknown command %q", args[0])
	}
}
